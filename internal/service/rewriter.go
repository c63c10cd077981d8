package service

import (
	"context"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"strings"
)

// Generator 是生成服务的窄接口，llm.Client 满足它。
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error)
}

// RewriteOptions 控制两个改写阶段是否启用。
type RewriteOptions struct {
	Disambiguate bool
	Simplify     bool
}

// Rewriter 在检索前改写问题。任一阶段失败都返回该阶段的输入，不中断流程。
type Rewriter struct {
	gen     Generator
	prompts Prompts
	opts    RewriteOptions
}

// NewRewriter 创建一个新的 Rewriter。
func NewRewriter(gen Generator, prompts Prompts, opts RewriteOptions) *Rewriter {
	return &Rewriter{gen: gen, prompts: prompts, opts: opts}
}

// Rewrite 按 消歧 → 简化 的顺序应用已启用的阶段。
func (r *Rewriter) Rewrite(ctx context.Context, summary, question string) string {
	q := question
	if r.opts.Disambiguate {
		q = r.Disambiguate(ctx, summary, q)
	}
	if r.opts.Simplify {
		q = r.Simplify(ctx, summary, q)
	}
	return q
}

// Disambiguate 借助文档摘要消除问题中的歧义。
func (r *Rewriter) Disambiguate(ctx context.Context, summary, question string) string {
	return r.apply(ctx, "disambiguate", r.prompts.Disambiguate, summary, question)
}

// Simplify 去掉问题中的具体细节，得到更通用的检索语句。
func (r *Rewriter) Simplify(ctx context.Context, summary, question string) string {
	return r.apply(ctx, "simplify", r.prompts.Simplify, summary, question)
}

func (r *Rewriter) apply(ctx context.Context, stage, tmpl, summary, question string) string {
	prompt := render(tmpl, "summary", summary, "question", question)
	out, err := r.gen.Generate(ctx, llm.UserMessage(prompt), nil)
	if err != nil {
		log.Warnw("[Rewriter] 改写失败，使用原问题", "stage", stage, "error", err)
		return question
	}
	out = strings.TrimSpace(out)
	if out == "" {
		log.Warnw("[Rewriter] 改写结果为空，使用原问题", "stage", stage)
		return question
	}
	log.Debugf("[Rewriter] %s: '%s' -> '%s'", stage, question, out)
	return out
}
