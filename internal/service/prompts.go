// Package service 实现问题改写、检索问答和文档摘要等业务逻辑。
package service

import (
	"docqa-go/internal/config"
	"strings"
)

// 模板中的占位符：{summary}、{question}、{context}、{document}
const (
	DefaultAnswerPrompt = `You answer questions about a single document using only the context below.
Reply with one short, self-contained statement. If the context does not contain the answer, say that the document does not specify it.

Context:
{context}

Question: {question}
Answer:`

	DefaultDisambiguatePrompt = `Here is a summary of a document:
{summary}

Rewrite the following question so that any vague references are resolved using the document's subject matter. Return only the rewritten question.

Question: {question}`

	DefaultSimplifyPrompt = `Here is a summary of a document:
{summary}

Rewrite the following question as a more general search query: remove specific names, numbers and incidental details but keep what is being asked. Return only the query.

Question: {question}`

	DefaultSummaryPrompt = `Summarize this document in one paragraph, naming its type, its parties and its main subjects.

{document}`
)

// Prompts 是一组已经填好默认值的模板。
type Prompts struct {
	Answer       string
	Disambiguate string
	Simplify     string
	Summary      string
}

// PromptsFromConfig 使用配置中的模板，未配置的使用默认模板。
func PromptsFromConfig(cfg config.RAGPromptConfig) Prompts {
	p := Prompts{
		Answer:       cfg.Answer,
		Disambiguate: cfg.Disambiguate,
		Simplify:     cfg.Simplify,
		Summary:      cfg.Summary,
	}
	if strings.TrimSpace(p.Answer) == "" {
		p.Answer = DefaultAnswerPrompt
	}
	if strings.TrimSpace(p.Disambiguate) == "" {
		p.Disambiguate = DefaultDisambiguatePrompt
	}
	if strings.TrimSpace(p.Simplify) == "" {
		p.Simplify = DefaultSimplifyPrompt
	}
	if strings.TrimSpace(p.Summary) == "" {
		p.Summary = DefaultSummaryPrompt
	}
	return p
}

// render 用键值对替换模板中的 {key} 占位符，单次扫描，替换后的内容不会被再次替换。
func render(tmpl string, kv ...string) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
