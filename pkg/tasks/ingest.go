// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// IngestTask asks a consumer to extract, index and summarise a document
// that has already been written to object storage.
type IngestTask struct {
	TaskID      string    `json:"task_id"`
	Fingerprint string    `json:"fingerprint"`
	Bucket      string    `json:"bucket"`
	ObjectKey   string    `json:"object_key"`
	FileName    string    `json:"file_name"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NewIngestTask creates a task with a fresh id.
func NewIngestTask(fingerprint, bucket, objectKey, fileName string) IngestTask {
	return IngestTask{
		TaskID:      uuid.NewString(),
		Fingerprint: fingerprint,
		Bucket:      bucket,
		ObjectKey:   objectKey,
		FileName:    fileName,
		EnqueuedAt:  time.Now().UTC(),
	}
}
