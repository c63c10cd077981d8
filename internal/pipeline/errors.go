package pipeline

import (
	"context"
	"docqa-go/internal/ocr"
	"docqa-go/pkg/textract"
	"errors"
	"fmt"
)

// Code 是返回给调用方的错误码。
type Code string

const (
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeDownloadFailed Code = "DOWNLOAD_FAILED"
	CodeStorageFailed  Code = "STORAGE_FAILED"
	CodeOCRJobFailed   Code = "OCR_JOB_FAILED"
	CodeOCRJobTimeout  Code = "OCR_JOB_TIMEOUT"
	CodeOCRUnavailable Code = "OCR_UNAVAILABLE"
	CodeIndexFailed    Code = "INDEX_FAILED"
	CodeCancelled      Code = "CANCELLED"
	CodeInternal       Code = "INTERNAL"
)

// Error 是流水线对外返回的结构化错误。
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError 创建一个流水线错误。
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Classify 根据错误链判断错误码，无法识别的错误归为 INTERNAL。
func Classify(err error) Code {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}

	var failed *ocr.JobFailedError
	var timeout *ocr.JobTimeoutError
	var transient *ocr.TransientServiceError
	switch {
	case errors.As(err, &failed), errors.Is(err, textract.ErrRejected):
		return CodeOCRJobFailed
	case errors.As(err, &timeout):
		return CodeOCRJobTimeout
	case errors.As(err, &transient):
		return CodeOCRUnavailable
	}
	return CodeInternal
}

// wrap 把一个阶段的错误包装为 *Error；能识别的错误保留自己的错误码，其余使用 fallback。
func wrap(fallback Code, message string, err error) *Error {
	code := Classify(err)
	if code == CodeInternal {
		code = fallback
	}
	return NewError(code, message, err)
}
