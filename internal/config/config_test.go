package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 120, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.InDelta(t, 0.35, cfg.RAG.MinScore, 1e-9)
	assert.Equal(t, 2, cfg.RAG.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RAG.CallTimeout)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.Equal(t, "./logs/audit.jsonl", cfg.Audit.ResponseLogPath)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
rag:
  chunk_size: 400
  chunk_overlap: 40
  top_k: 3
  call_timeout: 5s
vector:
  backend: qdrant
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("RAG_TOP_K", "6")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 40, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 6, cfg.RAG.TopK)
	assert.Equal(t, 5*time.Second, cfg.RAG.CallTimeout)
	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.InDelta(t, 0.35, cfg.RAG.MinScore, 1e-9)
}

func TestLoadRejectsInvalidTunables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag:\n  chunk_size: 100\n  chunk_overlap: 100\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestRAGConfigValidate(t *testing.T) {
	valid := RAGConfig{ChunkSize: 800, ChunkOverlap: 120, TopK: 4, MinScore: 0.35, CallTimeout: time.Second, MaxAttempts: 2}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*RAGConfig)
	}{
		{"zero chunk size", func(c *RAGConfig) { c.ChunkSize = 0 }},
		{"negative overlap", func(c *RAGConfig) { c.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *RAGConfig) { c.ChunkOverlap = c.ChunkSize }},
		{"zero top k", func(c *RAGConfig) { c.TopK = 0 }},
		{"min score above one", func(c *RAGConfig) { c.MinScore = 1.5 }},
		{"zero timeout", func(c *RAGConfig) { c.CallTimeout = 0 }},
		{"zero attempts", func(c *RAGConfig) { c.MaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
