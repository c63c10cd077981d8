package handler

import (
	"context"
	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"
	"docqa-go/pkg/log"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// Pipeline 是处理器对外暴露的操作。
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Stage(ctx context.Context, data []byte, fileName string) (*pipeline.Staged, error)
}

// RunRequest 是问答接口的 JSON 请求体。
type RunRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

// QAHandler 负责文档问答接口。
type QAHandler struct {
	pipeline Pipeline
	fetcher  Fetcher
	maxBytes int64
	timeout  time.Duration
}

// NewQAHandler 创建一个新的 QAHandler。timeout 限制单个请求的总处理时间。
func NewQAHandler(p Pipeline, fetcher Fetcher, maxBytes int64, timeout time.Duration) *QAHandler {
	return &QAHandler{pipeline: p, fetcher: fetcher, maxBytes: maxBytes, timeout: timeout}
}

// Run 处理 POST /api/v1/hackrx/run。
// 支持 JSON（documents 为文档 URL）和 multipart/form-data（file + 多个 questions）两种请求。
func (h *QAHandler) Run(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	req, err := h.readRequest(ctx, c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	res, err := h.pipeline.Run(ctx, *req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *QAHandler) readRequest(ctx context.Context, c *gin.Context) (*pipeline.Request, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return h.readMultipart(c)
	}
	var body RunRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, pipeline.NewError(pipeline.CodeInvalidInput, "invalid request body", err)
	}
	return h.fromRunRequest(ctx, body)
}

func (h *QAHandler) fromRunRequest(ctx context.Context, body RunRequest) (*pipeline.Request, error) {
	if strings.TrimSpace(body.Documents) == "" {
		return nil, pipeline.NewError(pipeline.CodeInvalidInput, "documents is required", nil)
	}
	if err := validateQuestions(body.Questions); err != nil {
		return nil, err
	}
	data, fileName, err := h.fetcher.Fetch(ctx, body.Documents)
	if err != nil {
		return nil, err
	}
	return &pipeline.Request{Document: data, FileName: fileName, Questions: body.Questions}, nil
}

func (h *QAHandler) readMultipart(c *gin.Context) (*pipeline.Request, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, pipeline.NewError(pipeline.CodeInvalidInput, "file is required", err)
	}
	if fh.Size > h.maxBytes {
		return nil, pipeline.NewError(pipeline.CodeInvalidInput, "document is too large", nil)
	}
	questions := c.PostFormArray("questions")
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, pipeline.NewError(pipeline.CodeInvalidInput, "failed to open uploaded file", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pipeline.NewError(pipeline.CodeInvalidInput, "failed to read uploaded file", err)
	}
	return &pipeline.Request{Document: data, FileName: fh.Filename, Questions: questions}, nil
}

func validateQuestions(questions []string) error {
	if len(questions) == 0 {
		return pipeline.NewError(pipeline.CodeInvalidInput, "questions must not be empty", nil)
	}
	return nil
}

// streamFrame 是 websocket 推送的一帧。
type streamFrame struct {
	Type      string           `json:"type"`
	Index     int              `json:"index"`
	Question  string           `json:"question,omitempty"`
	Answer    string           `json:"answer,omitempty"`
	Failed    bool             `json:"failed,omitempty"`
	Code      pipeline.Code    `json:"code,omitempty"`
	Message   string           `json:"message,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// Stream 处理 GET /api/v1/hackrx/stream。
// 连接建立后客户端发送一帧与 Run 相同的 JSON 请求，服务端每完成一个问题推送一帧 answer，
// 最后推送 completion（或 error）帧并关闭连接。
func (h *QAHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var body RunRequest
	if err := conn.ReadJSON(&body); err != nil {
		h.writeError(conn, pipeline.NewError(pipeline.CodeInvalidInput, "invalid request frame", err))
		return
	}
	req, err := h.fromRunRequest(ctx, body)
	if err != nil {
		h.writeError(conn, err)
		return
	}

	// OnAnswer 由 AnswerAll 串行调用，这里不需要额外加锁
	req.OnAnswer = func(i int, a model.Answer) {
		frame := streamFrame{Type: "answer", Index: i, Question: a.Question, Answer: a.Text, Failed: a.Failed, Timestamp: time.Now().UnixMilli()}
		if err := conn.WriteJSON(frame); err != nil {
			log.Warnf("[QAHandler] 推送答案失败, index: %d, error: %v", i, err)
			cancel()
		}
	}

	res, err := h.pipeline.Run(ctx, *req)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	_ = conn.WriteJSON(streamFrame{Type: "completion", Result: res, Timestamp: time.Now().UnixMilli()})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *QAHandler) writeError(conn *websocket.Conn, err error) {
	code, message := describe(err)
	log.Warnw("[QAHandler] 流式请求失败", "code", code, "error", err)
	_ = conn.WriteJSON(streamFrame{Type: "error", Code: code, Message: message, Timestamp: time.Now().UnixMilli()})
}
