package service

import (
	"context"
	"docqa-go/internal/model"
	"docqa-go/internal/ocr"
	"docqa-go/internal/repository"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"strings"
)

// SummaryFallback 是摘要生成失败时使用的文本，不会被缓存。
const SummaryFallback = "Could not generate summary."

// SummaryService 生成并缓存文档摘要：Redis → documents 表 → 生成服务。
type SummaryService struct {
	gen      Generator
	cache    repository.SummaryRepository
	docs     repository.DocumentRepository
	prompts  Prompts
	maxChars int
}

// NewSummaryService 创建一个新的 SummaryService。cache 与 docs 可以为 nil。
func NewSummaryService(gen Generator, cache repository.SummaryRepository, docs repository.DocumentRepository, prompts Prompts, maxChars int) *SummaryService {
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &SummaryService{gen: gen, cache: cache, docs: docs, prompts: prompts, maxChars: maxChars}
}

// Summarize 返回文档摘要，从不返回错误；生成失败时返回 SummaryFallback。
func (s *SummaryService) Summarize(ctx context.Context, doc *model.ExtractedDocument) string {
	fp := doc.Fingerprint
	if s.cache != nil {
		if summary, ok, err := s.cache.Get(ctx, fp); err != nil {
			log.Warnw("[SummaryService] 读取摘要缓存失败", "fingerprint", fp, "error", err)
		} else if ok {
			return summary
		}
	}
	if s.docs != nil {
		row, err := s.docs.FindByHash(ctx, fp)
		if err != nil {
			log.Warnw("[SummaryService] 查询文档记录失败", "fingerprint", fp, "error", err)
		} else if row != nil && row.Summary != "" && row.Summary != SummaryFallback {
			s.store(ctx, fp, row.Summary, false)
			return row.Summary
		}
	}

	prompt := render(s.prompts.Summary, "document", s.summaryInput(doc))
	summary, err := s.gen.Generate(ctx, llm.UserMessage(prompt), nil)
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		log.Warnw("[SummaryService] 摘要生成失败，使用默认文本", "fingerprint", fp, "error", err)
		return SummaryFallback
	}
	s.store(ctx, fp, summary, true)
	log.Infof("[SummaryService] 摘要生成成功, fingerprint: %s, chars: %d", fp, len(summary))
	return summary
}

// summaryInput 截取正文前 maxChars 个字符，并附上表格的 markdown。
func (s *SummaryService) summaryInput(doc *model.ExtractedDocument) string {
	text := doc.Text
	if runes := []rune(text); len(runes) > s.maxChars {
		text = string(runes[:s.maxChars])
	}
	tables := ocr.FormatTables(doc.Tables)
	if tables == "" {
		return text
	}
	return text + "\n\n" + tables
}

func (s *SummaryService) store(ctx context.Context, fp, summary string, persist bool) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, fp, summary); err != nil {
			log.Warnw("[SummaryService] 写入摘要缓存失败", "fingerprint", fp, "error", err)
		}
	}
	if persist && s.docs != nil {
		if err := s.docs.UpdateSummary(ctx, fp, summary); err != nil {
			log.Warnw("[SummaryService] 保存摘要失败", "fingerprint", fp, "error", err)
		}
	}
}
