package index

import (
	"context"
	"docqa-go/internal/model"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/es"
	"encoding/json"
	"fmt"
)

// DefaultIndexName 是分块索引的默认名称。
const DefaultIndexName = "document_chunks"

// esAPI 是 ESIndex 用到的 Elasticsearch 操作。
type esAPI interface {
	EnsureIndex(ctx context.Context, indexName, mapping string) error
	Count(ctx context.Context, indexName string, query map[string]any) (int64, error)
	Bulk(ctx context.Context, indexName string, items []es.BulkItem) error
	Search(ctx context.Context, indexName string, body map[string]any) ([]es.Hit, error)
}

type chunkDoc struct {
	Namespace   string    `json:"namespace"`
	Fingerprint string    `json:"fingerprint"`
	ChunkID     string    `json:"chunk_id"`
	ChunkText   string    `json:"chunk_text"`
	Sequence    int       `json:"sequence"`
	Vector      []float32 `json:"vector"`
}

// ESIndex 是基于 Elasticsearch 的 VectorIndex 实现。
// 所有文档共用一个索引，通过 namespace 字段隔离。
type ESIndex struct {
	es       esAPI
	embedder embedding.Client
	name     string
	dims     int
}

// NewESIndex 创建一个新的 ESIndex。
func NewESIndex(client esAPI, embedder embedding.Client, indexName string, dims int) *ESIndex {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &ESIndex{es: client, embedder: embedder, name: indexName, dims: dims}
}

// EnsureSchema 在索引不存在时创建它。
func (x *ESIndex) EnsureSchema(ctx context.Context) error {
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"namespace":   { "type": "keyword" },
				"fingerprint": { "type": "keyword" },
				"chunk_id":    { "type": "keyword" },
				"chunk_text":  { "type": "text" },
				"sequence":    { "type": "integer" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, x.dims)
	return x.es.EnsureIndex(ctx, x.name, mapping)
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{"term": map[string]any{"namespace": namespace}}
}

func (x *ESIndex) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	n, err := x.es.Count(ctx, x.name, namespaceFilter(namespace))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (x *ESIndex) Upsert(ctx context.Context, namespace string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := x.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	items := make([]es.BulkItem, len(chunks))
	for i, c := range chunks {
		items[i] = es.BulkItem{ID: c.ID, Doc: chunkDoc{
			Namespace:   namespace,
			Fingerprint: c.Fingerprint,
			ChunkID:     c.ID,
			ChunkText:   c.Text,
			Sequence:    c.Sequence,
			Vector:      vectors[i],
		}}
	}
	return x.es.Bulk(ctx, x.name, items)
}

// Search 在命名空间内做 kNN + BM25 混合检索，kNN 召回后用 BM25 重打分。
func (x *ESIndex) Search(ctx context.Context, namespace, query string, topK int) ([]model.SearchHit, error) {
	if topK <= 0 {
		topK = 5
	}
	vector, err := x.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := x.es.Search(ctx, x.name, buildSearchBody(namespace, query, vector, topK))
	if err != nil {
		return nil, err
	}

	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		var doc chunkDoc
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
		}
		out = append(out, model.SearchHit{ChunkID: doc.ChunkID, Text: doc.ChunkText, Score: h.Score})
	}
	return out, nil
}

func buildSearchBody(namespace, query string, vector []float32, topK int) map[string]any {
	recall := topK * 10
	return map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              recall,
			"num_candidates": recall * 2,
			"filter":         namespaceFilter(namespace),
		},
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"match": map[string]any{"chunk_text": query}},
				},
				"filter": []any{namespaceFilter(namespace)},
			},
		},
		"rescore": map[string]any{
			"window_size": recall,
			"query": map[string]any{
				"rescore_query": map[string]any{
					"match": map[string]any{"chunk_text": query},
				},
				"query_weight":         0.7,
				"rescore_query_weight": 0.3,
			},
		},
		"_source": []string{"chunk_id", "chunk_text"},
		"size":    topK,
	}
}
