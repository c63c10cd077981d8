package ocr

import (
	"bytes"
	"context"
	"docqa-go/internal/model"
	"docqa-go/pkg/log"
	"docqa-go/pkg/textract"
	"fmt"
	"io"
	"strings"
)

// Source 描述一份已经写入对象存储的文档。
type Source struct {
	Fingerprint string
	FileName    string
	Bucket      string
	Key         string
	Data        []byte
}

// Extractor 把一份文档抽取为结构化的文本和表格。
type Extractor interface {
	Extract(ctx context.Context, src Source) (*model.ExtractedDocument, error)
}

// TextractExtractor 通过异步 OCR 作业抽取文本和表格。
type TextractExtractor struct {
	runner   *Runner
	features []textract.Feature
}

// NewTextractExtractor 创建一个基于 OCR 作业的抽取器。
func NewTextractExtractor(runner *Runner, features []textract.Feature) *TextractExtractor {
	return &TextractExtractor{runner: runner, features: features}
}

// Extract 提交作业、等待完成、拉取全部结果页并重建块图。
func (e *TextractExtractor) Extract(ctx context.Context, src Source) (*model.ExtractedDocument, error) {
	jobID, err := e.runner.Submit(ctx, DocumentRef{Bucket: src.Bucket, Key: src.Key}, e.features)
	if err != nil {
		return nil, err
	}
	if err := e.runner.AwaitCompletion(ctx, jobID); err != nil {
		return nil, err
	}
	pages, err := e.runner.FetchAllPages(ctx, jobID)
	if err != nil {
		return nil, err
	}

	doc, stats := Reconstruct(src.Fingerprint, pages)
	log.Infow("[OCR] 块图重建完成",
		"fingerprint", src.Fingerprint,
		"jobID", jobID,
		"blocks", stats.Blocks,
		"lines", stats.Lines,
		"tables", stats.Tables,
		"cells", stats.Cells,
		"dangling", stats.DanglingRefs,
	)
	return doc, nil
}

// TextClient 是 Tika 客户端满足的接口。
type TextClient interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// TikaExtractor 使用 Tika 抽取纯文本，不产生表格。
type TikaExtractor struct {
	client TextClient
}

// NewTikaExtractor 创建一个基于 Tika 的抽取器。
func NewTikaExtractor(client TextClient) *TikaExtractor {
	return &TikaExtractor{client: client}
}

func (e *TikaExtractor) Extract(ctx context.Context, src Source) (*model.ExtractedDocument, error) {
	text, err := e.client.ExtractText(ctx, bytes.NewReader(src.Data), src.FileName)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientServiceError{Op: "tika extract", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("tika returned no text for %s", src.FileName)
	}
	log.Infof("[OCR] Tika 文本抽取完成, fingerprint: %s, chars: %d", src.Fingerprint, len(text))
	return &model.ExtractedDocument{
		Fingerprint: src.Fingerprint,
		Text:        text,
		Tables:      []model.Table{},
	}, nil
}
