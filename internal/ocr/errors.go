package ocr

import (
	"fmt"
	"time"
)

// JobFailedError 表示 OCR 作业以失败状态结束，不会自动重试。
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ocr job %s failed", e.JobID)
	}
	return fmt.Sprintf("ocr job %s failed: %s", e.JobID, e.Message)
}

// JobTimeoutError 表示轮询超时，作业仍未到达终态。
type JobTimeoutError struct {
	JobID  string
	Waited time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("ocr job %s did not finish after %s", e.JobID, e.Waited)
}

// TransientServiceError 表示 OCR 服务调用在重试次数用尽后仍然失败。
type TransientServiceError struct {
	Op  string
	Err error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("ocr service unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientServiceError) Unwrap() error {
	return e.Err
}
