package handler

import (
	"context"
	"docqa-go/internal/pipeline"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// Fetcher 按 URL 下载文档，返回内容和文件名。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Downloader 是带大小和超时限制的 HTTP 下载器。
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

// NewDownloader 创建一个新的 Downloader。
func NewDownloader(timeout time.Duration, maxBytes int64) *Downloader {
	return &Downloader{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// Fetch 下载 rawURL 指向的文档。文件名取 URL 路径的最后一段（不含查询参数）。
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", pipeline.NewError(pipeline.CodeInvalidInput, "documents must be an http(s) url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", pipeline.NewError(pipeline.CodeInvalidInput, "invalid document url", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", pipeline.NewError(pipeline.CodeCancelled, "download cancelled", ctx.Err())
		}
		return nil, "", pipeline.NewError(pipeline.CodeDownloadFailed, "failed to download document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", pipeline.NewError(pipeline.CodeDownloadFailed,
			fmt.Sprintf("document url returned status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", pipeline.NewError(pipeline.CodeDownloadFailed, "failed to read document body", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, "", pipeline.NewError(pipeline.CodeInvalidInput,
			fmt.Sprintf("document exceeds %d bytes", d.maxBytes), nil)
	}
	return data, fileNameFromURL(u), nil
}

func fileNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}
