package service

import (
	"context"
	"docqa-go/internal/index"
	"docqa-go/internal/model"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AnswerOptions 配置检索问答。
type AnswerOptions struct {
	TopK        int
	Concurrency int
	Placeholder string
}

// AnswerRequest 是一批针对同一文档的问题。
type AnswerRequest struct {
	Namespace string
	Summary   string
	Questions []string
	// OnAnswer 在每个问题完成时被调用（串行调用），可用于流式返回。
	OnAnswer func(index int, a model.Answer)
}

// AnswerService 对每个问题执行 改写 → 检索 → 生成。
type AnswerService struct {
	index    index.VectorIndex
	gen      Generator
	rewriter *Rewriter
	prompts  Prompts
	opts     AnswerOptions
}

// NewAnswerService 创建一个新的 AnswerService。
func NewAnswerService(vi index.VectorIndex, gen Generator, rewriter *Rewriter, prompts Prompts, opts AnswerOptions) *AnswerService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Placeholder == "" {
		opts.Placeholder = "Unable to answer this question from the document."
	}
	return &AnswerService{index: vi, gen: gen, rewriter: rewriter, prompts: prompts, opts: opts}
}

// AnswerAll 并发回答所有问题，返回的切片与输入问题按下标一一对应。
// 单个问题失败时记录占位答案并继续处理其余问题。
func (s *AnswerService) AnswerAll(ctx context.Context, req AnswerRequest) []model.Answer {
	answers := make([]model.Answer, len(req.Questions))
	var mu sync.Mutex
	deliver := func(i int, a model.Answer) {
		answers[i] = a
		if req.OnAnswer != nil {
			mu.Lock()
			req.OnAnswer(i, a)
			mu.Unlock()
		}
	}

	// 不使用 errgroup.WithContext：一个问题失败不应取消其他问题
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, q := range req.Questions {
		i, q := i, q
		g.Go(func() error {
			deliver(i, s.answerOne(ctx, req.Namespace, req.Summary, q))
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, a := range answers {
		if a.Failed {
			failed++
		}
	}
	log.Infof("[AnswerService] 回答完成, namespace: %s, questions: %d, failed: %d", req.Namespace, len(answers), failed)
	return answers
}

func (s *AnswerService) answerOne(ctx context.Context, namespace, summary, question string) model.Answer {
	a := model.Answer{Question: question}
	if err := ctx.Err(); err != nil {
		return s.fail(a, err)
	}
	if strings.TrimSpace(question) == "" {
		return s.fail(a, errors.New("empty question"))
	}

	query := question
	if s.rewriter != nil {
		query = s.rewriter.Rewrite(ctx, summary, question)
	}
	if query != question {
		a.Rewritten = query
	}

	hits, err := s.index.Search(ctx, namespace, query, s.opts.TopK)
	if err != nil {
		return s.fail(a, fmt.Errorf("retrieve: %w", err))
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}

	prompt := render(s.prompts.Answer, "context", strings.Join(texts, "\n\n"), "question", query)
	text, err := s.gen.Generate(ctx, llm.UserMessage(prompt), nil)
	if err != nil {
		return s.fail(a, fmt.Errorf("generate: %w", err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return s.fail(a, errors.New("generate: empty completion"))
	}
	a.Text = text
	return a
}

func (s *AnswerService) fail(a model.Answer, err error) model.Answer {
	log.Warnw("[AnswerService] 问题回答失败，使用占位答案", "question", a.Question, "error", err)
	a.Failed = true
	a.Text = s.opts.Placeholder
	a.Err = err
	return a
}
