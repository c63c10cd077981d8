// Package index 负责把抽取出的文本切分为分块，并按文档命名空间写入向量索引。
package index

import "unicode/utf8"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SplitText 按字符（rune）把文本切成固定大小、带重叠的窗口。
// 第 k 个窗口从 k*(size-overlap) 开始，只要起点还在文本内就会产生一个窗口，
// 因此 2500 个字符在 1000/200 下产生 4 个分块。overlap >= size 时退化为不重叠的窗口。
func SplitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
