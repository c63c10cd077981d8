package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"docqa-go/internal/model"
	"docqa-go/pkg/llm"
)

// scriptedGen 根据 prompt 内容返回结果，respond 返回空字符串且 err 为 nil 时回显 prompt。
type scriptedGen struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (g *scriptedGen) Generate(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	prompt := messages[len(messages)-1].Content
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.respond(prompt)
}

func (g *scriptedGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakeIndex struct {
	mu      sync.Mutex
	queries []string
	hits    []model.SearchHit
	failFor string
}

func (f *fakeIndex) NamespaceExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeIndex) Upsert(context.Context, string, []model.Chunk) error { return nil }

func (f *fakeIndex) Search(_ context.Context, _ string, query string, _ int) ([]model.SearchHit, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.failFor != "" && strings.Contains(query, f.failFor) {
		return nil, errors.New("index timeout")
	}
	return f.hits, nil
}

type memSummaries struct {
	data map[string]string
	sets int
}

func (m *memSummaries) Get(_ context.Context, hash string) (string, bool, error) {
	s, ok := m.data[hash]
	return s, ok, nil
}

func (m *memSummaries) Set(_ context.Context, hash, summary string) error {
	m.sets++
	m.data[hash] = summary
	return nil
}

type memDocs struct {
	rows    map[string]*model.Document
	updates int
}

func (m *memDocs) Upsert(_ context.Context, doc *model.Document) error {
	m.rows[doc.Hash] = doc
	return nil
}

func (m *memDocs) FindByHash(_ context.Context, hash string) (*model.Document, error) {
	return m.rows[hash], nil
}

func (m *memDocs) UpdateSummary(_ context.Context, hash, summary string) error {
	m.updates++
	if row, ok := m.rows[hash]; ok {
		row.Summary = summary
	}
	return nil
}

func (m *memDocs) MarkIndexed(context.Context, string, int) error { return nil }

func (m *memDocs) UpdateStatus(context.Context, string, string) error { return nil }
