package index

import (
	"context"
	"encoding/json"
	"testing"

	"docqa-go/internal/model"
	"docqa-go/pkg/es"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	count      int64
	countQuery map[string]any
	bulkIndex  string
	bulkItems  []es.BulkItem
	searchBody map[string]any
	hits       []es.Hit
	mapping    string
}

func (f *fakeES) EnsureIndex(_ context.Context, _ string, mapping string) error {
	f.mapping = mapping
	return nil
}

func (f *fakeES) Count(_ context.Context, _ string, query map[string]any) (int64, error) {
	f.countQuery = query
	return f.count, nil
}

func (f *fakeES) Bulk(_ context.Context, indexName string, items []es.BulkItem) error {
	f.bulkIndex = indexName
	f.bulkItems = items
	return nil
}

func (f *fakeES) Search(_ context.Context, _ string, body map[string]any) ([]es.Hit, error) {
	f.searchBody = body
	return f.hits, nil
}

type fakeEmbedder struct {
	batches [][]string
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestESIndexNamespaceExists(t *testing.T) {
	client := &fakeES{count: 3}
	x := NewESIndex(client, &fakeEmbedder{}, "", 4)

	ok, err := x.NamespaceExists(context.Background(), "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"term": map[string]any{"namespace": "fp"}}, client.countQuery)

	client.count = 0
	ok, err = x.NamespaceExists(context.Background(), "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestESIndexUpsertEmbedsAndBulks(t *testing.T) {
	client := &fakeES{}
	emb := &fakeEmbedder{}
	x := NewESIndex(client, emb, "chunks", 4)

	chunks := []model.Chunk{
		{ID: "fp-chunk-0", Text: "alpha", Sequence: 0, Fingerprint: "fp"},
		{ID: "fp-chunk-1", Text: "be", Sequence: 1, Fingerprint: "fp"},
	}
	require.NoError(t, x.Upsert(context.Background(), "fp", chunks))

	assert.Equal(t, [][]string{{"alpha", "be"}}, emb.batches)
	assert.Equal(t, "chunks", client.bulkIndex)
	require.Len(t, client.bulkItems, 2)
	assert.Equal(t, "fp-chunk-1", client.bulkItems[1].ID)
	doc := client.bulkItems[1].Doc.(chunkDoc)
	assert.Equal(t, "fp", doc.Namespace)
	assert.Equal(t, "fp", doc.Fingerprint)
	assert.Equal(t, 1, doc.Sequence)
	assert.Equal(t, []float32{2}, doc.Vector)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fingerprint":"fp"`)
}

func TestESIndexSearch(t *testing.T) {
	src, _ := json.Marshal(chunkDoc{ChunkID: "fp-chunk-3", ChunkText: "grace period of 30 days"})
	client := &fakeES{hits: []es.Hit{{ID: "fp-chunk-3", Score: 1.5, Source: src}}}
	x := NewESIndex(client, &fakeEmbedder{}, "", 4)

	hits, err := x.Search(context.Background(), "fp", "grace period", 5)
	require.NoError(t, err)
	assert.Equal(t, []model.SearchHit{{ChunkID: "fp-chunk-3", Text: "grace period of 30 days", Score: 1.5}}, hits)

	assert.Equal(t, 5, client.searchBody["size"])
	knn := client.searchBody["knn"].(map[string]any)
	assert.Equal(t, map[string]any{"term": map[string]any{"namespace": "fp"}}, knn["filter"])
}

func TestESIndexEnsureSchemaUsesDims(t *testing.T) {
	client := &fakeES{}
	require.NoError(t, NewESIndex(client, &fakeEmbedder{}, "", 1536).EnsureSchema(context.Background()))
	assert.Contains(t, client.mapping, `"dims": 1536`)
	assert.Contains(t, client.mapping, `"fingerprint": { "type": "keyword" }`)
}
