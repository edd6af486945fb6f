package pipeline

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

// ChunkCatalog records which chunks a document produced.
type ChunkCatalog interface {
	ReplaceDocument(ctx context.Context, documentID string, records []*model.ChunkRecord) error
}

// ChunkFailure is a chunk that could not be embedded.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Err     error  `json:"-"`
	Reason  string `json:"reason"`
}

// IndexReport summarises one indexing run.
type IndexReport struct {
	DocumentID string         `json:"document_id,omitempty"`
	Total      int            `json:"total"`
	Indexed    []string       `json:"indexed"`
	Failed     []ChunkFailure `json:"failed"`
}

// Indexer embeds chunks and upserts them into a vector index.
type Indexer struct {
	chunker      *Chunker
	embedder     embedding.Client
	index        vector.Index
	catalog      ChunkCatalog
	batchSize    int
	policy       retry.Policy
	modelVersion string
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithCatalog records chunk rows in catalog after each document.
func WithCatalog(catalog ChunkCatalog) IndexerOption {
	return func(i *Indexer) { i.catalog = catalog }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) IndexerOption {
	return func(i *Indexer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithRetryPolicy bounds each embedding call.
func WithRetryPolicy(p retry.Policy) IndexerOption {
	return func(i *Indexer) { i.policy = p }
}

// WithModelVersion tags stored records with the embedding model id.
func WithModelVersion(v string) IndexerOption {
	return func(i *Indexer) { i.modelVersion = v }
}

// NewIndexer creates an Indexer; options override the batch size, retry policy and catalog.
func NewIndexer(chunker *Chunker, embedder embedding.Client, index vector.Index, opts ...IndexerOption) *Indexer {
	i := &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: 16,
		policy:    retry.Policy{Attempts: 1},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IndexDocument chunks doc and replaces whatever the index held for it.
func (i *Indexer) IndexDocument(ctx context.Context, doc model.Document) (*IndexReport, error) {
	chunks, err := i.chunker.Chunk(doc)
	if err != nil {
		return nil, err
	}
	log.Infof("[Indexer] document %s split into %d chunks (size=%d, overlap=%d)",
		doc.ID, len(chunks), i.chunker.Size(), i.chunker.Overlap())

	if err := i.index.DeleteDocument(ctx, doc.ID); err != nil {
		return nil, wrapIndexErr(fmt.Errorf("clear previous chunks of %s: %w", doc.ID, err))
	}

	report, err := i.Index(ctx, chunks)
	if report != nil {
		report.DocumentID = doc.ID
	}
	if i.catalog != nil && report != nil {
		if cerr := i.catalog.ReplaceDocument(ctx, doc.ID, i.catalogRows(chunks, report)); cerr != nil {
			log.Warnf("[Indexer] catalog update for %s failed: %v", doc.ID, cerr)
		}
	}
	return report, err
}

// Index embeds chunks in batches and upserts the ones that succeed. A failed
// batch is retried chunk by chunk so one bad chunk does not sink its
// neighbours. The returned error is non-nil only when the index rejects
// an upsert.
func (i *Indexer) Index(ctx context.Context, chunks []model.Chunk) (*IndexReport, error) {
	report := &IndexReport{Total: len(chunks), Indexed: []string{}, Failed: []ChunkFailure{}}

	for start := 0; start < len(chunks); start += i.batchSize {
		end := start + i.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		records := make([]model.EmbeddingRecord, 0, len(batch))
		var reported []bool
		vectors, err := i.embedBatch(ctx, batch)
		if err != nil {
			log.Warnf("[Indexer] batch embedding of %d chunks failed, retrying one by one: %v", len(batch), err)
			vectors = make([][]float32, len(batch))
			reported = make([]bool, len(batch))
			for j, ch := range batch {
				v, err := i.embedOne(ctx, ch)
				if err != nil {
					report.fail(ch.ID, fmt.Errorf("%v: %w", err, model.ErrEmbeddingService))
					reported[j] = true
					continue
				}
				vectors[j] = v
			}
		}

		for j, ch := range batch {
			v := vectors[j]
			if v == nil {
				if reported == nil || !reported[j] {
					report.fail(ch.ID, fmt.Errorf("provider returned no vector: %w", model.ErrEmbeddingService))
				}
				continue
			}
			if len(v) != i.index.Dimensions() {
				report.fail(ch.ID, fmt.Errorf("embedding has %d dimensions, index expects %d: %w",
					len(v), i.index.Dimensions(), model.ErrEmbeddingService))
				continue
			}
			records = append(records, model.EmbeddingRecord{
				ChunkID:    ch.ID,
				DocumentID: ch.DocumentID,
				Text:       ch.Text,
				Vector:     v,
				Metadata:   ch.Metadata,
				ModelID:    i.modelVersion,
			})
		}

		if len(records) == 0 {
			continue
		}
		if err := i.index.Upsert(ctx, records); err != nil {
			log.Errorf("[Indexer] upsert of %d records failed: %v", len(records), err)
			return report, wrapIndexErr(err)
		}
		for _, r := range records {
			report.Indexed = append(report.Indexed, r.ChunkID)
		}
	}

	log.Infow("[Indexer] indexing finished",
		"total", report.Total, "indexed", len(report.Indexed), "failed", len(report.Failed))
	return report, nil
}

func (i *Indexer) embedBatch(ctx context.Context, batch []model.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for j, ch := range batch {
		texts[j] = ch.Text
	}
	var vectors [][]float32
	err := retry.Do(ctx, i.policy, func(ctx context.Context) error {
		var err error
		vectors, err = i.embedder.CreateEmbeddings(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch))
	}
	return vectors, nil
}

func (i *Indexer) embedOne(ctx context.Context, ch model.Chunk) ([]float32, error) {
	var v []float32
	err := retry.Do(ctx, i.policy, func(ctx context.Context) error {
		var err error
		v, err = i.embedder.CreateEmbedding(ctx, ch.Text)
		return err
	})
	return v, err
}

func (i *Indexer) catalogRows(chunks []model.Chunk, report *IndexReport) []*model.ChunkRecord {
	indexed := make(map[string]bool, len(report.Indexed))
	for _, id := range report.Indexed {
		indexed[id] = true
	}
	rows := make([]*model.ChunkRecord, 0, len(chunks))
	for _, ch := range chunks {
		rows = append(rows, &model.ChunkRecord{
			ChunkID:      ch.ID,
			DocumentID:   ch.DocumentID,
			Seq:          ch.Seq,
			TextContent:  ch.Text,
			StartOffset:  ch.StartOffset,
			EndOffset:    ch.EndOffset,
			SectionID:    ch.Metadata[model.MetaSectionID],
			Severity:     ch.Metadata[model.MetaSeverity],
			ModelVersion: i.modelVersion,
			Indexed:      indexed[ch.ID],
		})
	}
	return rows
}

func (r *IndexReport) fail(chunkID string, err error) {
	log.Warnf("[Indexer] chunk %s failed: %v", chunkID, err)
	r.Failed = append(r.Failed, ChunkFailure{ChunkID: chunkID, Err: err, Reason: err.Error()})
}

func wrapIndexErr(err error) error {
	if errors.Is(err, model.ErrIndexUnavailable) {
		return err
	}
	return fmt.Errorf("%v: %w", err, model.ErrIndexUnavailable)
}
