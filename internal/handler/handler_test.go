package handler

import (
	"bytes"
	"context"
	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"
	"docqa-go/pkg/hash"
	"docqa-go/pkg/tasks"
	"docqa-go/pkg/token"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePipeline struct {
	runErr   error
	stageErr error
	last     pipeline.Request
}

func (p *fakePipeline) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	p.last = req
	if p.runErr != nil {
		return nil, p.runErr
	}
	res := &pipeline.Result{Fingerprint: hash.Fingerprint(req.Document), Status: pipeline.StatusOK}
	for i, q := range req.Questions {
		text := "answer: " + q
		res.Answers = append(res.Answers, text)
		if req.OnAnswer != nil {
			req.OnAnswer(i, model.Answer{Question: q, Text: text})
		}
	}
	return res, nil
}

func (p *fakePipeline) Stage(_ context.Context, data []byte, fileName string) (*pipeline.Staged, error) {
	if p.stageErr != nil {
		return nil, p.stageErr
	}
	fp := hash.Fingerprint(data)
	return &pipeline.Staged{Fingerprint: fp, FileName: fileName, Key: pipeline.BlobKey(fp, fileName), Data: data}, nil
}

type fakeFetcher struct {
	data []byte
	name string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, string, error) {
	f.urls = append(f.urls, rawURL)
	return f.data, f.name, f.err
}

type fakeProducer struct {
	tasks []tasks.IngestTask
	err   error
}

func (p *fakeProducer) Produce(_ context.Context, task tasks.IngestTask) error {
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

type memDocs struct {
	rows map[string]*model.Document
}

func (m *memDocs) Upsert(_ context.Context, doc *model.Document) error {
	m.rows[doc.Hash] = doc
	return nil
}
func (m *memDocs) FindByHash(_ context.Context, h string) (*model.Document, error) {
	return m.rows[h], nil
}
func (m *memDocs) UpdateSummary(context.Context, string, string) error { return nil }
func (m *memDocs) MarkIndexed(context.Context, string, int) error       { return nil }
func (m *memDocs) UpdateStatus(context.Context, string, string) error  { return nil }

type fakeSigner struct {
	err  error
	keys []string
}

func (f *fakeSigner) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://minio.local/docs-bucket/" + key + "?expires=" + expiry.String(), nil
}

type testEnv struct {
	pipeline *fakePipeline
	fetcher  *fakeFetcher
	producer *fakeProducer
	docs     *memDocs
	signer   *fakeSigner
	router   *gin.Engine
}

func newEnv(jwtManager *token.JWTManager) *testEnv {
	env := &testEnv{
		pipeline: &fakePipeline{},
		fetcher:  &fakeFetcher{data: []byte("%PDF"), name: "policy.pdf"},
		producer: &fakeProducer{},
		docs:     &memDocs{rows: map[string]*model.Document{}},
		signer:   &fakeSigner{},
	}
	env.router = NewRouter(jwtManager, Handlers{
		QA:        NewQAHandler(env.pipeline, env.fetcher, 1024, time.Minute),
		Documents: NewDocumentHandler(env.pipeline, env.docs, env.signer, env.producer, "docs-bucket", 1024),
		Health: NewHealthHandler(map[string]HealthCheck{
			"redis": func(context.Context) error { return nil },
		}),
	})
	return env
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fileName string, content []byte, questions ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for _, q := range questions {
		require.NoError(t, mw.WriteField("questions", q))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestRun_JSON(t *testing.T) {
	env := newEnv(nil)

	w := postJSON(t, env.router, "/api/v1/hackrx/run",
		`{"documents":"https://example.com/policy.pdf?sig=1","questions":["What is covered?","What is excluded?"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"answer: What is covered?", "answer: What is excluded?"}, res.Answers)
	assert.Equal(t, []string{"https://example.com/policy.pdf?sig=1"}, env.fetcher.urls)
	assert.Equal(t, "policy.pdf", env.pipeline.last.FileName)
}

func TestRun_Multipart(t *testing.T) {
	env := newEnv(nil)
	body, contentType := multipartBody(t, "scan.pdf", []byte("pdf bytes"), "q1", "q2")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("pdf bytes"), env.pipeline.last.Document)
	assert.Equal(t, "scan.pdf", env.pipeline.last.FileName)
	assert.Equal(t, []string{"q1", "q2"}, env.pipeline.last.Questions)
	assert.Empty(t, env.fetcher.urls)
}

func TestRun_InvalidInput(t *testing.T) {
	env := newEnv(nil)

	cases := map[string]string{
		"no questions": `{"documents":"https://example.com/a.pdf","questions":[]}`,
		"no document":  `{"questions":["q"]}`,
		"not json":     `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postJSON(t, env.router, "/api/v1/hackrx/run", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"INVALID_INPUT"`)
		})
	}
}

func TestRun_PipelineErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{pipeline.NewError(pipeline.CodeOCRJobTimeout, "ocr timed out", nil), http.StatusGatewayTimeout, "OCR_JOB_TIMEOUT"},
		{pipeline.NewError(pipeline.CodeOCRJobFailed, "ocr failed", nil), http.StatusUnprocessableEntity, "OCR_JOB_FAILED"},
		{pipeline.NewError(pipeline.CodeIndexFailed, "index down", nil), http.StatusServiceUnavailable, "INDEX_FAILED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			env := newEnv(nil)
			env.pipeline.runErr = tc.err
			w := postJSON(t, env.router, "/api/v1/hackrx/run", `{"documents":"https://example.com/a.pdf","questions":["q"]}`)
			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestRun_DownloadFailure(t *testing.T) {
	env := newEnv(nil)
	env.fetcher.err = pipeline.NewError(pipeline.CodeDownloadFailed, "document url returned status 404", nil)

	w := postJSON(t, env.router, "/api/v1/hackrx/run", `{"documents":"https://example.com/a.pdf","questions":["q"]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"code":"DOWNLOAD_FAILED","message":"document url returned status 404"}`, w.Body.String())
}

func TestRun_RequiresTokenWhenAuthEnabled(t *testing.T) {
	m := token.NewJWTManager("secret", 1)
	env := newEnv(m)
	body := `{"documents":"https://example.com/a.pdf","questions":["q"]}`

	w := postJSON(t, env.router, "/api/v1/hackrx/run", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := m.GenerateToken("tester", ScopeAsk)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStream_PushesAnswersThenCompletion(t *testing.T) {
	env := newEnv(nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/hackrx/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(RunRequest{Documents: "https://example.com/a.pdf", Questions: []string{"q1", "q2"}}))

	var frames []streamFrame
	for {
		var f streamFrame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
		if f.Type == "completion" || f.Type == "error" {
			break
		}
	}

	require.Len(t, frames, 3)
	assert.Equal(t, "answer", frames[0].Type)
	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, "answer: q1", frames[0].Answer)
	assert.Equal(t, 1, frames[1].Index)
	assert.Equal(t, "completion", frames[2].Type)
	require.NotNil(t, frames[2].Result)
	assert.Len(t, frames[2].Result.Answers, 2)
}

func TestStream_InvalidRequestFrame(t *testing.T) {
	env := newEnv(nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/hackrx/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(RunRequest{Documents: "https://example.com/a.pdf"}))

	var f streamFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, pipeline.CodeInvalidInput, f.Code)
}

func TestDocuments_UploadEnqueuesTask(t *testing.T) {
	env := newEnv(nil)
	body, contentType := multipartBody(t, "claim.pdf", []byte("claim"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, env.producer.tasks, 1)
	task := env.producer.tasks[0]
	fp := hash.Fingerprint([]byte("claim"))
	assert.Equal(t, fp, task.Fingerprint)
	assert.Equal(t, "docs-bucket", task.Bucket)
	assert.Equal(t, "docs/"+fp+".pdf", task.ObjectKey)
	assert.Contains(t, w.Body.String(), task.TaskID)
}

func TestDocuments_UploadTooLarge(t *testing.T) {
	env := newEnv(nil)
	body, contentType := multipartBody(t, "big.pdf", bytes.Repeat([]byte("x"), 2048))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.producer.tasks)
}

func TestDocuments_Get(t *testing.T) {
	env := newEnv(nil)
	fp := hash.Fingerprint([]byte("known"))
	env.docs.rows[fp] = &model.Document{Hash: fp, FileName: "known.pdf", Status: model.DocumentStatusIndexed, ChunkCount: 3}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+fp, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var dto model.DocumentDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, "known.pdf", dto.FileName)
	assert.Equal(t, 3, dto.ChunkCount)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+hash.Fingerprint([]byte("other")), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/not-a-hash", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocuments_GetIncludesDownloadURL(t *testing.T) {
	env := newEnv(nil)
	fp := hash.Fingerprint([]byte("signed"))
	env.docs.rows[fp] = &model.Document{Hash: fp, FileName: "signed.pdf", BlobPath: "docs/" + fp + ".pdf"}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+fp, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var dto model.DocumentDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, "https://minio.local/docs-bucket/docs/"+fp+".pdf?expires=15m0s", dto.DownloadURL)
	assert.Equal(t, []string{"docs/" + fp + ".pdf"}, env.signer.keys)

	env.signer.err = errors.New("minio down")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+fp, nil))
	require.Equal(t, http.StatusOK, w.Code)
	dto = model.DocumentDTO{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Empty(t, dto.DownloadURL)
}

func TestHealthz(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis":         func(context.Context) error { return nil },
		"elasticsearch": func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/healthz", h.Healthz)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","dependencies":{"redis":"ok","elasticsearch":"connection refused"}}`, w.Body.String())
}
