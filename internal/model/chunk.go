package model

import "fmt"

// Chunk 是写入向量索引的一个检索单元。
type Chunk struct {
	ID          string `json:"chunk_id"`
	Text        string `json:"chunk_text"`
	Sequence    int    `json:"sequence"`
	Fingerprint string `json:"fingerprint"`
}

// ChunkID 生成 "<fingerprint>-chunk-<i>" 格式的分块 ID。
func ChunkID(fingerprint string, seq int) string {
	return fmt.Sprintf("%s-chunk-%d", fingerprint, seq)
}

// SearchHit 是一次检索返回的分块，按得分从高到低排列。
type SearchHit struct {
	ChunkID string  `json:"chunkId"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}
