package index

import (
	"context"
	"docqa-go/internal/model"
	"docqa-go/pkg/log"
	"fmt"
)

// DefaultBatchSize 是单次写入请求的最大分块数。
const DefaultBatchSize = 96

// VectorIndex 是向量索引服务的窄接口，每个文档占用一个以指纹命名的命名空间。
type VectorIndex interface {
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	Upsert(ctx context.Context, namespace string, chunks []model.Chunk) error
	Search(ctx context.Context, namespace, query string, topK int) ([]model.SearchHit, error)
}

// Options 配置分块与批量写入。
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Result 描述一次索引的结果。
type Result struct {
	Skipped bool
	Chunks  int
	Batches int
}

// Indexer 把 ExtractedDocument 切块并写入向量索引。
type Indexer struct {
	index VectorIndex
	opts  Options
}

// NewIndexer 创建一个新的 Indexer，零值选项使用默认值。
func NewIndexer(index VectorIndex, opts Options) *Indexer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Indexer{index: index, opts: opts}
}

// BuildChunks 把文本切块并分配 ID 与序号。
func (ix *Indexer) BuildChunks(fingerprint, text string) []model.Chunk {
	parts := SplitText(text, ix.opts.ChunkSize, ix.opts.ChunkOverlap)
	chunks := make([]model.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, model.Chunk{
			ID:          model.ChunkID(fingerprint, i),
			Text:        p,
			Sequence:    i,
			Fingerprint: fingerprint,
		})
	}
	return chunks
}

// Index 在命名空间不存在时切块并按批顺序写入；任何一批失败都会中止剩余批次。
// 命名空间已存在时不做任何写入。
func (ix *Indexer) Index(ctx context.Context, fingerprint, text string) (*Result, error) {
	exists, err := ix.index.NamespaceExists(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("check namespace %s: %w", fingerprint, err)
	}
	if exists {
		log.Infof("[Indexer] 命名空间已存在，跳过索引, namespace: %s", fingerprint)
		return &Result{Skipped: true}, nil
	}

	chunks := ix.BuildChunks(fingerprint, text)
	log.Infof("[Indexer] 文本切分完成, namespace: %s, chunks: %d", fingerprint, len(chunks))

	res := &Result{Chunks: len(chunks)}
	for start := 0; start < len(chunks); start += ix.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + ix.opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := ix.index.Upsert(ctx, fingerprint, chunks[start:end]); err != nil {
			return nil, fmt.Errorf("upsert batch %d (chunks %d-%d): %w", res.Batches, start, end-1, err)
		}
		res.Batches++
	}
	log.Infof("[Indexer] 索引完成, namespace: %s, batches: %d", fingerprint, res.Batches)
	return res, nil
}
