package index

import (
	"context"
	"errors"
	"testing"

	"docqa-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	exists     map[string]bool
	existsErr  error
	upserts    [][]model.Chunk
	failOnCall int
}

func (f *fakeIndex) NamespaceExists(_ context.Context, ns string) (bool, error) {
	return f.exists[ns], f.existsErr
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, chunks []model.Chunk) error {
	f.upserts = append(f.upserts, chunks)
	if f.failOnCall > 0 && len(f.upserts) == f.failOnCall {
		return errors.New("index unavailable")
	}
	return nil
}

func (f *fakeIndex) Search(context.Context, string, string, int) ([]model.SearchHit, error) {
	return nil, nil
}

func TestIndexSkipsExistingNamespace(t *testing.T) {
	idx := &fakeIndex{exists: map[string]bool{"fp": true}}
	res, err := NewIndexer(idx, Options{}).Index(context.Background(), "fp", numbered(5000))

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, idx.upserts)
}

func TestIndexBatchesSequentially(t *testing.T) {
	idx := &fakeIndex{exists: map[string]bool{}}
	ix := NewIndexer(idx, Options{ChunkSize: 10, ChunkOverlap: 0, BatchSize: 4})

	res, err := ix.Index(context.Background(), "fp", numbered(95))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Chunks)
	assert.Equal(t, 3, res.Batches)
	require.Len(t, idx.upserts, 3)
	assert.Len(t, idx.upserts[0], 4)
	assert.Len(t, idx.upserts[2], 2)

	first := idx.upserts[0][0]
	assert.Equal(t, "fp-chunk-0", first.ID)
	assert.Equal(t, 0, first.Sequence)
	assert.Equal(t, "fp", first.Fingerprint)
	assert.Equal(t, "fp-chunk-9", idx.upserts[2][1].ID)
}

func TestIndexFailsFast(t *testing.T) {
	idx := &fakeIndex{exists: map[string]bool{}, failOnCall: 2}
	ix := NewIndexer(idx, Options{ChunkSize: 10, BatchSize: 2})

	_, err := ix.Index(context.Background(), "fp", numbered(100))
	require.Error(t, err)
	assert.Len(t, idx.upserts, 2, "no batch after the failing one")
}

func TestIndexNamespaceCheckError(t *testing.T) {
	idx := &fakeIndex{existsErr: errors.New("down")}
	_, err := NewIndexer(idx, Options{}).Index(context.Background(), "fp", "text")
	require.Error(t, err)
	assert.Empty(t, idx.upserts)
}

func TestNewIndexerDefaults(t *testing.T) {
	ix := NewIndexer(&fakeIndex{}, Options{ChunkSize: 100, ChunkOverlap: 150})
	assert.Equal(t, DefaultBatchSize, ix.opts.BatchSize)
	assert.Equal(t, 0, ix.opts.ChunkOverlap)
}
