package pipeline

import (
	"context"
	"docqa-go/pkg/log"
	"docqa-go/pkg/tasks"
	"fmt"
)

// TaskProcessor 处理来自 Kafka 的预摄取任务，满足 kafka.TaskProcessor 接口。
type TaskProcessor struct {
	processor *Processor
}

// NewTaskProcessor 创建一个新的 TaskProcessor。
func NewTaskProcessor(p *Processor) *TaskProcessor {
	return &TaskProcessor{processor: p}
}

// Process 从对象存储读取文档并执行摄取。
func (t *TaskProcessor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[TaskProcessor] 开始处理摄取任务, task: %s, fingerprint: %s", task.TaskID, task.Fingerprint)
	data, err := t.processor.deps.Store.Get(ctx, task.ObjectKey)
	if err != nil {
		return wrap(CodeStorageFailed, fmt.Sprintf("failed to read %s", task.ObjectKey), err)
	}
	ing, err := t.processor.IngestStaged(ctx, &Staged{
		Fingerprint: task.Fingerprint,
		FileName:    task.FileName,
		Key:         task.ObjectKey,
		Data:        data,
	})
	if err != nil {
		return err
	}
	log.Infof("[TaskProcessor] 摄取任务完成, fingerprint: %s, cacheHit: %t", ing.Fingerprint, ing.CacheHit)
	return nil
}
