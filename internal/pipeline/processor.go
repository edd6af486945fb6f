package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/storage"
	"advisor-gpt-go/pkg/tasks"
)

// Processor runs ingestion tasks: fetch the raw document, normalise the
// markdown and index it.
type Processor struct {
	store   storage.Store
	indexer *Indexer
}

// NewProcessor creates a Processor reading raw documents from store.
func NewProcessor(store storage.Store, indexer *Indexer) *Processor {
	return &Processor{store: store, indexer: indexer}
}

// Process handles one queued task. An error leaves the task eligible for redelivery.
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[Processor] start, document: %s, object: %s", task.DocumentID, task.ObjectName)

	log.Infof("[Processor] step 1: fetch object %s", task.ObjectName)
	raw, err := p.store.Get(ctx, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] fetch failed, object: %s, error: %v", task.ObjectName, err)
		return fmt.Errorf("fetch %s: %w", task.ObjectName, err)
	}
	log.Infof("[Processor] step 1: fetched %d bytes", len(raw))

	_, err = p.IngestMarkdown(ctx, task.DocumentID, raw)
	return err
}

// IngestMarkdown parses raw markdown and (re)indexes it under documentID.
// It fails when nothing could be indexed.
func (p *Processor) IngestMarkdown(ctx context.Context, documentID string, raw []byte) (*IndexReport, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("document %s is not valid UTF-8: %w", documentID, model.ErrInvalidDocument)
	}

	log.Info("[Processor] step 2: parse markdown")
	doc, err := ParseMarkdown(documentID, string(raw))
	if err != nil {
		return nil, err
	}
	log.Infof("[Processor] step 2: %d runes, %d sections", utf8.RuneCountInString(doc.Text), len(doc.Sections))

	log.Info("[Processor] step 3: chunk, embed and index")
	report, err := p.indexer.IndexDocument(ctx, doc)
	if err != nil {
		log.Errorf("[Processor] indexing %s failed: %v", documentID, err)
		return report, err
	}
	if len(report.Indexed) == 0 && len(report.Failed) > 0 {
		return report, fmt.Errorf("document %s: all %d chunks failed to embed: %w",
			documentID, len(report.Failed), report.Failed[0].Err)
	}
	log.Infof("[Processor] done, document: %s, indexed: %d, failed: %d",
		documentID, len(report.Indexed), len(report.Failed))
	return report, nil
}
