// Package pipeline 定义了文档处理与问答的核心流程。
package pipeline

import (
	"context"
	"docqa-go/internal/index"
	"docqa-go/internal/model"
	"docqa-go/internal/ocr"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/hash"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"encoding/json"
	"mime"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"
)

// 结果状态
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
)

// DocumentIndexer 是 index.Indexer 满足的接口。
type DocumentIndexer interface {
	Index(ctx context.Context, fingerprint, text string) (*index.Result, error)
}

// Summarizer 是 service.SummaryService 满足的接口。
type Summarizer interface {
	Summarize(ctx context.Context, doc *model.ExtractedDocument) string
}

// Answerer 是 service.AnswerService 满足的接口。
type Answerer interface {
	AnswerAll(ctx context.Context, req service.AnswerRequest) []model.Answer
}

// Deps 是 Processor 的依赖。Documents 可以为 nil。
type Deps struct {
	Store       storage.ObjectStore
	Extractions repository.ExtractionCache
	Documents   repository.DocumentRepository
	Extractor   ocr.Extractor
	Indexer     DocumentIndexer
	Summaries   Summarizer
	Answers     Answerer
}

// Options 配置流水线行为。
type Options struct {
	// IndexTables 为 true 时把表格的 markdown 追加到被索引的文本后面。
	IndexTables bool
}

// Processor 串联 指纹 → 存储 → 抽取缓存 → OCR → 索引 → 摘要 → 问答。
type Processor struct {
	deps Deps
	opts Options
}

// NewProcessor 创建一个新的 Processor。
func NewProcessor(deps Deps, opts Options) *Processor {
	return &Processor{deps: deps, opts: opts}
}

// Request 是一次问答请求。
type Request struct {
	Document  []byte
	FileName  string
	Questions []string
	OnAnswer  func(index int, a model.Answer)
}

// Result 是一次问答的结果，Answers 与输入问题按下标一一对应。
type Result struct {
	Fingerprint string                `json:"fingerprint"`
	Summary     string                `json:"summary"`
	Answers     []string              `json:"answers"`
	Failures    []model.AnswerFailure `json:"failures,omitempty"`
	Status      string                `json:"status"`
}

// Staged 描述已经写入对象存储的文档。
type Staged struct {
	Fingerprint string
	FileName    string
	Key         string
	Data        []byte
}

// Ingested 是摄取阶段的产物。
type Ingested struct {
	Fingerprint string
	Document    *model.ExtractedDocument
	Summary     string
	CacheHit    bool
	Index       *index.Result
}

// BlobKey 返回原始文档在对象存储中的路径 docs/<fingerprint><ext>。
func BlobKey(fingerprint, fileName string) string {
	return "docs/" + fingerprint + extension(fileName)
}

func extension(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return ".pdf"
	}
	return ext
}

// Run 处理文档并回答所有问题。
// 摄取阶段的失败会中止整个请求；单个问题的失败只影响该问题。
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	ing, err := p.Ingest(ctx, req.Document, req.FileName)
	if err != nil {
		return nil, err
	}

	log.Infof("[Processor] 开始回答问题, fingerprint: %s, questions: %d", ing.Fingerprint, len(req.Questions))
	answers := p.deps.Answers.AnswerAll(ctx, service.AnswerRequest{
		Namespace: ing.Fingerprint,
		Summary:   ing.Summary,
		Questions: req.Questions,
		OnAnswer:  req.OnAnswer,
	})
	// 请求超时或被取消时，剩余问题拿到的只是占位答案，整体按取消处理。
	if err := ctx.Err(); err != nil {
		return nil, wrap(CodeCancelled, "request cancelled while answering", err)
	}

	res := &Result{
		Fingerprint: ing.Fingerprint,
		Summary:     ing.Summary,
		Answers:     make([]string, len(answers)),
		Status:      StatusOK,
	}
	for i, a := range answers {
		res.Answers[i] = a.Text
		if a.Failed {
			reason := "unknown error"
			if a.Err != nil {
				reason = a.Err.Error()
			}
			res.Failures = append(res.Failures, model.AnswerFailure{Index: i, Question: a.Question, Reason: reason})
		}
	}
	if len(res.Failures) > 0 {
		res.Status = StatusPartial
	}
	return res, nil
}

// Stage 校验文档、计算指纹，并在对象不存在时写入对象存储。
func (p *Processor) Stage(ctx context.Context, data []byte, fileName string) (*Staged, error) {
	if len(data) == 0 {
		return nil, NewError(CodeInvalidInput, "document is empty", nil)
	}
	if fileName == "" {
		fileName = "document.pdf"
	}

	fp := hash.Fingerprint(data)
	key := BlobKey(fp, fileName)
	contentType := mime.TypeByExtension(extension(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	written, err := storage.PutIfAbsent(ctx, p.deps.Store, key, data, contentType)
	if err != nil {
		return nil, wrap(CodeStorageFailed, "failed to store document", err)
	}
	log.Infof("[Processor] 文档已就绪, fingerprint: %s, key: %s, newlyWritten: %t", fp, key, written)
	return &Staged{Fingerprint: fp, FileName: fileName, Key: key, Data: data}, nil
}

// Ingest 执行摄取阶段：存储、抽取（缓存未命中时）、索引与摘要。
func (p *Processor) Ingest(ctx context.Context, data []byte, fileName string) (*Ingested, error) {
	staged, err := p.Stage(ctx, data, fileName)
	if err != nil {
		return nil, err
	}
	return p.IngestStaged(ctx, staged)
}

// IngestStaged 对已经写入对象存储的文档执行抽取、索引与摘要。
func (p *Processor) IngestStaged(ctx context.Context, st *Staged) (*Ingested, error) {
	fp := st.Fingerprint

	doc, err := p.deps.Extractions.Get(ctx, fp)
	if err != nil {
		return nil, wrap(CodeStorageFailed, "failed to read extraction cache", err)
	}
	cacheHit := doc != nil
	if cacheHit {
		log.Infof("[Processor] 抽取缓存命中, fingerprint: %s", fp)
	} else {
		log.Infof("[Processor] 抽取缓存未命中，开始抽取, fingerprint: %s", fp)
		doc, err = p.deps.Extractor.Extract(ctx, ocr.Source{
			Fingerprint: fp,
			FileName:    st.FileName,
			Bucket:      p.deps.Store.Bucket(),
			Key:         st.Key,
			Data:        st.Data,
		})
		if err != nil {
			return nil, wrap(CodeOCRUnavailable, "document extraction failed", err)
		}
		doc.Fingerprint = fp
		if err := p.deps.Extractions.Put(ctx, doc); err != nil {
			log.Warnw("[Processor] 写入抽取缓存失败", "fingerprint", fp, "error", err)
		}
	}

	p.saveMetadata(ctx, st, doc)

	text := doc.Text
	if p.opts.IndexTables {
		if tables := ocr.FormatTables(doc.Tables); tables != "" {
			text = text + "\n\n" + tables
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewError(CodeOCRJobFailed, "no text could be extracted from the document", nil)
	}

	idx, err := p.deps.Indexer.Index(ctx, fp, text)
	if err != nil {
		p.setStatus(ctx, fp, model.DocumentStatusFailed)
		return nil, wrap(CodeIndexFailed, "failed to index document", err)
	}
	if !idx.Skipped && p.deps.Documents != nil {
		if err := p.deps.Documents.MarkIndexed(ctx, fp, idx.Chunks); err != nil {
			log.Warnw("[Processor] 更新文档状态失败", "fingerprint", fp, "error", err)
		}
	}

	summary := p.deps.Summaries.Summarize(ctx, doc)
	if err := ctx.Err(); err != nil {
		return nil, wrap(CodeCancelled, "request cancelled", err)
	}

	return &Ingested{
		Fingerprint: fp,
		Document:    doc,
		Summary:     summary,
		CacheHit:    cacheHit,
		Index:       idx,
	}, nil
}

// saveMetadata 写入 documents 表。元数据失败不影响问答，只记录日志。
func (p *Processor) saveMetadata(ctx context.Context, st *Staged, doc *model.ExtractedDocument) {
	if p.deps.Documents == nil {
		return
	}
	tableData, err := json.Marshal(doc.Tables)
	if err != nil {
		log.Warnw("[Processor] 序列化表格失败", "fingerprint", st.Fingerprint, "error", err)
		tableData = []byte("[]")
	}
	row := &model.Document{
		Hash:            st.Fingerprint,
		FileName:        st.FileName,
		TableData:       datatypes.JSON(tableData),
		TextPath:        repository.ExtractionKey(st.Fingerprint),
		BlobPath:        st.Key,
		VectorNamespace: st.Fingerprint,
		Status:          model.DocumentStatusExtracted,
	}
	if err := p.deps.Documents.Upsert(ctx, row); err != nil {
		log.Warnw("[Processor] 保存文档元数据失败", "fingerprint", st.Fingerprint, "error", err)
	}
}

func (p *Processor) setStatus(ctx context.Context, fp, status string) {
	if p.deps.Documents == nil {
		return
	}
	if err := p.deps.Documents.UpdateStatus(ctx, fp, status); err != nil {
		log.Warnw("[Processor] 更新文档状态失败", "fingerprint", fp, "error", err)
	}
}
