package handler

import (
	"context"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/pkg/hash"
	"docqa-go/pkg/log"
	"docqa-go/pkg/tasks"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TaskProducer 发送预摄取任务。
type TaskProducer interface {
	Produce(ctx context.Context, task tasks.IngestTask) error
}

// downloadURLExpiry 是元数据中原始文档下载链接的有效期。
const downloadURLExpiry = 15 * time.Minute

// URLSigner 为存储对象生成限时下载链接。
type URLSigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// DocumentHandler 负责文档预摄取和元数据查询。
type DocumentHandler struct {
	pipeline Pipeline
	docs     repository.DocumentRepository
	signer   URLSigner
	producer TaskProducer
	bucket   string
	maxBytes int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler。docs 或 producer 为 nil 时对应接口返回 503；
// signer 为 nil 时元数据中不带下载链接。
func NewDocumentHandler(p Pipeline, docs repository.DocumentRepository, signer URLSigner, producer TaskProducer, bucket string, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{pipeline: p, docs: docs, signer: signer, producer: producer, bucket: bucket, maxBytes: maxBytes}
}

// Upload 处理 POST /api/v1/documents：写入对象存储并投递异步摄取任务。
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.producer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE", "message": "asynchronous ingestion is disabled"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, pipeline.NewError(pipeline.CodeInvalidInput, "file is required", err))
		return
	}
	if fh.Size > h.maxBytes {
		abortWithError(c, pipeline.NewError(pipeline.CodeInvalidInput, "document is too large", nil))
		return
	}
	f, err := fh.Open()
	if err != nil {
		abortWithError(c, pipeline.NewError(pipeline.CodeInvalidInput, "failed to open uploaded file", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, pipeline.NewError(pipeline.CodeInvalidInput, "failed to read uploaded file", err))
		return
	}

	staged, err := h.pipeline.Stage(c.Request.Context(), data, fh.Filename)
	if err != nil {
		abortWithError(c, err)
		return
	}

	task := tasks.NewIngestTask(staged.Fingerprint, h.bucket, staged.Key, staged.FileName)
	if err := h.producer.Produce(c.Request.Context(), task); err != nil {
		log.Errorf("[DocumentHandler] 投递摄取任务失败, fingerprint: %s, error: %v", staged.Fingerprint, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE", "message": "failed to enqueue ingestion task"})
		return
	}
	log.Infof("[DocumentHandler] 摄取任务已投递, task: %s, fingerprint: %s", task.TaskID, task.Fingerprint)

	c.JSON(http.StatusAccepted, gin.H{
		"taskId":      task.TaskID,
		"fingerprint": staged.Fingerprint,
		"objectKey":   staged.Key,
	})
}

// Get 处理 GET /api/v1/documents/:hash。
func (h *DocumentHandler) Get(c *gin.Context) {
	if h.docs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE", "message": "document metadata store is not configured"})
		return
	}
	fp := c.Param("hash")
	if !hash.Valid(fp) {
		abortWithError(c, pipeline.NewError(pipeline.CodeInvalidInput, "hash must be a sha-256 hex digest", nil))
		return
	}

	doc, err := h.docs.FindByHash(c.Request.Context(), fp)
	if err != nil {
		log.Error("[DocumentHandler] 查询文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": pipeline.CodeInternal, "message": "failed to load document"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "document not found"})
		return
	}
	dto := doc.ToDTO()
	if h.signer != nil && doc.BlobPath != "" {
		url, err := h.signer.PresignedURL(c.Request.Context(), doc.BlobPath, downloadURLExpiry)
		if err != nil {
			log.Warnw("[DocumentHandler] 生成下载链接失败", "fingerprint", fp, "error", err)
		} else {
			dto.DownloadURL = url
		}
	}
	c.JSON(http.StatusOK, dto)
}
