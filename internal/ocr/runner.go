package ocr

import (
	"context"
	"docqa-go/pkg/log"
	"docqa-go/pkg/textract"
	"errors"
	"fmt"
	"time"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultTimeout      = 300 * time.Second
	defaultMaxRetries   = 3
	defaultBackoff      = 500 * time.Millisecond
	maxBackoff          = 10 * time.Second
)

// DocumentRef 指向 OCR 服务可以直接读取的存储对象。
type DocumentRef struct {
	Bucket string
	Key    string
}

// SleepFunc 等待 d，ctx 取消时提前返回 ctx.Err()。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner 提交 OCR 作业、轮询直到终态并拉取全部结果页。
// 轮询是只读操作，调用方取消 ctx 不会影响远端作业。
type Runner struct {
	client       textract.Client
	pollInterval time.Duration
	timeout      time.Duration
	maxRetries   int
	backoff      time.Duration
	sleep        SleepFunc
	now          func() time.Time
}

// RunnerOption 配置 Runner。
type RunnerOption func(*Runner)

func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMaxRetries(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithSleeper 替换等待函数，测试中用它代替真实计时器。
func WithSleeper(fn SleepFunc) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithClock 替换时钟，超时按 now 计算的实际耗时判断。
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner 创建一个新的 Runner。
func NewRunner(client textract.Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:       client,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
		maxRetries:   defaultMaxRetries,
		backoff:      defaultBackoff,
		sleep:        sleepWithContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit 提交一个分析作业并返回作业 ID。
func (r *Runner) Submit(ctx context.Context, ref DocumentRef, features []textract.Feature) (string, error) {
	if len(features) == 0 {
		features = []textract.Feature{textract.FeatureTables, textract.FeatureForms}
	}
	var jobID string
	err := r.withRetry(ctx, "submit", func() error {
		id, err := r.client.StartAnalysis(ctx, textract.DocumentLocation{Bucket: ref.Bucket, Key: ref.Key}, features)
		jobID = id
		return err
	})
	if err != nil {
		return "", err
	}
	log.Infof("[OCR] 作业已提交, jobID: %s, object: %s/%s", jobID, ref.Bucket, ref.Key)
	return jobID, nil
}

// AwaitCompletion 按固定间隔轮询作业状态。
// 成功返回 nil；失败返回 *JobFailedError；超时返回 *JobTimeoutError；
// ctx 被取消时返回 ctx 的错误；轮询调用本身持续失败时返回 *TransientServiceError。
func (r *Runner) AwaitCompletion(ctx context.Context, jobID string) error {
	start := r.now()
	for polls := 1; ; polls++ {
		page, err := r.getPage(ctx, jobID, "")
		if err != nil {
			return err
		}
		switch page.JobStatus {
		case textract.StatusSucceeded:
			log.Infof("[OCR] 作业完成, jobID: %s, polls: %d", jobID, polls)
			return nil
		case textract.StatusFailed:
			return &JobFailedError{JobID: jobID, Message: page.StatusMessage}
		}

		// 耗时包含服务调用和重试退避，下一次轮询会超出 timeout 时直接结束。
		waited := r.now().Sub(start)
		if waited+r.pollInterval > r.timeout {
			return &JobTimeoutError{JobID: jobID, Waited: waited}
		}
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return err
		}
	}
}

// Completed 只在作业成功结束时返回 true，失败、超时与取消都返回 false。
func (r *Runner) Completed(ctx context.Context, jobID string) bool {
	return r.AwaitCompletion(ctx, jobID) == nil
}

// FetchAllPages 沿着续页令牌拉取作业的全部结果页，直到令牌为空。
func (r *Runner) FetchAllPages(ctx context.Context, jobID string) ([]textract.Page, error) {
	var pages []textract.Page
	seen := make(map[string]bool)
	token := ""
	for {
		page, err := r.getPage(ctx, jobID, token)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
		if page.NextToken == "" {
			break
		}
		if seen[page.NextToken] {
			return nil, fmt.Errorf("ocr job %s returned a repeated continuation token", jobID)
		}
		seen[page.NextToken] = true
		token = page.NextToken
	}
	log.Infof("[OCR] 已拉取结果页, jobID: %s, pages: %d", jobID, len(pages))
	return pages, nil
}

func (r *Runner) getPage(ctx context.Context, jobID, token string) (*textract.Page, error) {
	var page *textract.Page
	err := r.withRetry(ctx, "poll", func() error {
		p, err := r.client.GetAnalysis(ctx, jobID, token)
		page = p
		return err
	})
	return page, err
}

// withRetry 对可重试的错误做指数退避重试，被服务明确拒绝的请求立即返回。
func (r *Runner) withRetry(ctx context.Context, op string, call func() error) error {
	var lastErr error
	delay := r.backoff
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, textract.ErrRejected) {
			return fmt.Errorf("ocr %s: %w", op, err)
		}
		lastErr = err
		log.Warnw("[OCR] 服务调用失败，准备重试", "op", op, "attempt", attempt+1, "error", err)
	}
	return &TransientServiceError{Op: op, Err: lastErr}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
