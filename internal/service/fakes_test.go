package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/repository"
	"advisor-gpt-go/pkg/llm"
	"advisor-gpt-go/pkg/vector"
)

// vecEmbedder maps known texts to fixed vectors.
type vecEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *vecEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	v, ok := e.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func (e *vecEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scriptedLLM returns replies in order and counts calls.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    int
	messages [][]llm.Message
}

func (s *scriptedLLM) Complete(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.messages = append(s.messages, messages)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type failingIndex struct{ vector.Index }

func (failingIndex) Search(context.Context, []float32, int) ([]model.EvidenceItem, error) {
	return nil, errors.New("connection refused")
}
func (failingIndex) Dimensions() int { return 3 }

type failingAudit struct{ repository.AuditRepository }

func (failingAudit) AppendResponse(context.Context, *model.Response) error {
	return errors.New("disk full")
}

func newAudit(t *testing.T) *repository.AuditLog {
	t.Helper()
	dir := t.TempDir()
	a, err := repository.NewAuditLog(filepath.Join(dir, "audit.jsonl"), filepath.Join(dir, "feedback.jsonl"))
	require.NoError(t, err)
	return a
}

// seededIndex holds four chunks: a and d point along x, b is close to x and
// c is orthogonal.
func seededIndex(t *testing.T) *vector.MemoryIndex {
	t.Helper()
	idx := vector.NewMemoryIndex(3)
	require.NoError(t, idx.Upsert(context.Background(), []model.EmbeddingRecord{
		{ChunkID: "pump_0", DocumentID: "pump", Text: "Low flow: check impeller wear.", Vector: []float32{1, 0, 0},
			Metadata: map[string]string{model.MetaSourceDocument: "pump.md"}},
		{ChunkID: "pump_1", DocumentID: "pump", Text: "Inspect the inlet strainer.", Vector: []float32{0.9, 0.1, 0},
			Metadata: map[string]string{model.MetaSourceDocument: "pump.md"}},
		{ChunkID: "valve_0", DocumentID: "valve", Text: "Valve chatter.", Vector: []float32{0, 1, 0}},
		{ChunkID: "pump_2", DocumentID: "pump", Text: "Bleed air from the line.", Vector: []float32{1, 0, 0},
			Metadata: map[string]string{model.MetaSourceDocument: "pump.md"}},
	}))
	return idx
}

var queryVectors = map[string][]float32{
	"low flow issue":   {1, 0, 0},
	"valve chatter":    {0, 1, 0},
	"something random": {0, 0, 1},
}
