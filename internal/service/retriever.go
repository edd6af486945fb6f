// Package service holds the query pipeline and the feedback, performance
// and document services built on it.
package service

import (
	"context"
	"errors"
	"fmt"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/embedding"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/retry"
	"advisor-gpt-go/pkg/vector"
)

// Retrieval is the evidence for one query. Candidates counts the hits the
// index returned before the score threshold was applied.
type Retrieval struct {
	Items      []model.EvidenceItem
	Candidates int
}

// Retriever finds evidence for a query.
type Retriever interface {
	Retrieve(ctx context.Context, text string) (Retrieval, error)
}

type retriever struct {
	embedder embedding.Client
	index    vector.Index
	topK     int
	minScore float64
	policy   retry.Policy
}

// NewRetriever returns a Retriever that keeps at most topK hits scoring at
// least minScore.
func NewRetriever(embedder embedding.Client, index vector.Index, topK int, minScore float64, policy retry.Policy) Retriever {
	return &retriever{embedder: embedder, index: index, topK: topK, minScore: minScore, policy: policy}
}

// Retrieve embeds text and searches the index. Embedding failures wrap
// model.ErrEmbeddingService and search failures model.ErrIndexUnavailable.
// No evidence is an empty result, not an error.
func (r *retriever) Retrieve(ctx context.Context, text string) (Retrieval, error) {
	var vec []float32
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		vec, err = r.embedder.CreateEmbedding(ctx, text)
		return err
	})
	if err != nil {
		log.Errorf("[Retriever] query embedding failed: %v", err)
		return Retrieval{}, fmt.Errorf("embed query: %v: %w", err, model.ErrEmbeddingService)
	}
	if len(vec) != r.index.Dimensions() {
		return Retrieval{}, fmt.Errorf("query embedding has %d dimensions, index expects %d: %w",
			len(vec), r.index.Dimensions(), model.ErrEmbeddingService)
	}

	var hits []model.EvidenceItem
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		hits, err = r.index.Search(ctx, vec, r.topK)
		return err
	})
	if err != nil {
		log.Errorf("[Retriever] index search failed: %v", err)
		if errors.Is(err, model.ErrIndexUnavailable) {
			return Retrieval{}, err
		}
		return Retrieval{}, fmt.Errorf("search index: %v: %w", err, model.ErrIndexUnavailable)
	}

	kept := make([]model.EvidenceItem, 0, len(hits))
	for _, h := range hits {
		if len(kept) == r.topK {
			break
		}
		if h.Score >= r.minScore {
			kept = append(kept, h)
		}
	}
	log.Infof("[Retriever] %d candidates, %d at or above %.2f", len(hits), len(kept), r.minScore)
	return Retrieval{Items: kept, Candidates: len(hits)}, nil
}
