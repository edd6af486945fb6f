// Package vector stores embedding records and answers nearest-neighbour
// queries. Scores are cosine similarity in [-1, 1]; results are ordered by
// descending score with ties broken by insertion order.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/internal/model"
)

// Index is the capability the indexer and retriever depend on.
type Index interface {
	// Upsert inserts or replaces records keyed by ChunkID.
	Upsert(ctx context.Context, records []model.EmbeddingRecord) error
	// Search returns at most k items nearest to vector.
	Search(ctx context.Context, vector []float32, k int) ([]model.EvidenceItem, error)
	// DeleteDocument removes every record belonging to documentID.
	DeleteDocument(ctx context.Context, documentID string) error
	Dimensions() int
}

// ErrDimensionMismatch is returned when a vector's length differs from the index's.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// New builds the backend selected by cfg.Vector.Backend.
func New(ctx context.Context, cfg config.Config) (Index, error) {
	dims := cfg.Vector.Dimensions
	switch cfg.Vector.Backend {
	case "", "memory":
		return NewMemoryIndex(dims), nil
	case "elasticsearch":
		return NewElasticsearchIndex(ctx, cfg.Elasticsearch, dims)
	case "qdrant":
		return NewQdrantIndex(ctx, cfg.Qdrant, dims)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

func checkDims(want int, records []model.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Vector) != want {
			return fmt.Errorf("chunk %s: got %d, want %d: %w", r.ChunkID, len(r.Vector), want, ErrDimensionMismatch)
		}
	}
	return nil
}

// ranked is a hit with the insertion sequence used for tie-breaking.
type ranked struct {
	item model.EvidenceItem
	seq  int64
}

func sortRanked(hits []ranked) []model.EvidenceItem {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].item.Score != hits[j].item.Score {
			return hits[i].item.Score > hits[j].item.Score
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]model.EvidenceItem, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}

func evidenceFrom(r model.EmbeddingRecord, score float64) model.EvidenceItem {
	source := r.Metadata[model.MetaSourceDocument]
	if source == "" {
		source = r.DocumentID
	}
	return model.EvidenceItem{
		ChunkID:        r.ChunkID,
		DocumentID:     r.DocumentID,
		Text:           r.Text,
		Score:          score,
		SourceDocument: source,
		Metadata:       r.Metadata,
	}
}
