// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"docqa-go/internal/pipeline"
	"docqa-go/pkg/log"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusFor 把流水线错误码映射为 HTTP 状态码。
func statusFor(code pipeline.Code) int {
	switch code {
	case pipeline.CodeInvalidInput:
		return http.StatusBadRequest
	case pipeline.CodeDownloadFailed, pipeline.CodeOCRJobFailed:
		return http.StatusUnprocessableEntity
	case pipeline.CodeOCRJobTimeout, pipeline.CodeCancelled:
		return http.StatusGatewayTimeout
	case pipeline.CodeOCRUnavailable, pipeline.CodeStorageFailed, pipeline.CodeIndexFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// describe 返回错误码和面向调用方的错误信息。
func describe(err error) (pipeline.Code, string) {
	code := pipeline.Classify(err)
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return code, pe.Message
	}
	return code, err.Error()
}

func abortWithError(c *gin.Context, err error) {
	code, message := describe(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Errorf("[Handler] 请求失败, path: %s, error: %v", c.Request.URL.Path, err)
	} else {
		log.Warnw("[Handler] 请求被拒绝", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}
