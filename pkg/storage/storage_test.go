package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string][]byte
	puts    int
	statErr error
}

func (m *memStore) Bucket() string { return "test" }

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	if m.statErr != nil {
		return false, m.statErr
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.puts++
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func TestPutIfAbsent(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	ctx := context.Background()

	written, err := PutIfAbsent(ctx, store, "docs/a.pdf", []byte("v1"), "application/pdf")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = PutIfAbsent(ctx, store, "docs/a.pdf", []byte("v2"), "application/pdf")
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, []byte("v1"), store.objects["docs/a.pdf"])
}

func TestPutIfAbsentStatError(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}, statErr: errors.New("unreachable")}
	_, err := PutIfAbsent(context.Background(), store, "k", nil, "")
	require.Error(t, err)
	assert.Equal(t, 0, store.puts)
}
