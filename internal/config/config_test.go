package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
embedding:
  dimensions: 768
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 96, cfg.RAG.BatchSize)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.True(t, cfg.RAG.IndexTables)
	assert.True(t, cfg.RAG.Rewrite.Simplify)
	assert.False(t, cfg.RAG.Rewrite.Disambiguate)
	assert.Equal(t, 5*time.Second, cfg.OCR.PollInterval)
	assert.Equal(t, 300*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, 3, cfg.OCR.MaxRetries)
	assert.Equal(t, []string{"TABLES", "FORMS"}, cfg.OCR.Features)
	assert.Equal(t, 768, cfg.Elasticsearch.Dims)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
ocr:
  poll_interval: 2s
  timeout: 1m
  max_retries: 0
rag:
  chunk_overlap: 0
  index_tables: false
  rewrite:
    simplify: false
    disambiguate: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.OCR.PollInterval)
	assert.Equal(t, time.Minute, cfg.OCR.Timeout)
	assert.Equal(t, 0, cfg.OCR.MaxRetries)
	assert.Equal(t, 0, cfg.RAG.ChunkOverlap)
	assert.False(t, cfg.RAG.IndexTables)
	assert.False(t, cfg.RAG.Rewrite.Simplify)
	assert.True(t, cfg.RAG.Rewrite.Disambiguate)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: "from-file"
`)
	t.Setenv("DOCQA_LLM_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaults_InvalidOverlap(t *testing.T) {
	cfg := Config{RAG: RAGConfig{ChunkSize: 500, ChunkOverlap: 500}}
	ApplyDefaults(&cfg)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
}
