package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/repository"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/storage"
	"advisor-gpt-go/pkg/tasks"
	"advisor-gpt-go/pkg/vector"
)

// TaskProducer queues ingestion tasks.
type TaskProducer interface {
	ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error
}

// TaskProcessor runs one ingestion task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// DocumentService is the ingestion front door.
type DocumentService interface {
	Upload(ctx context.Context, req model.DocumentUploadRequest) (*model.DocumentUploadResult, error)
	ListChunks(ctx context.Context, documentID string) ([]*model.ChunkRecord, error)
	DeleteDocument(ctx context.Context, documentID string) error
	IngestDirectory(ctx context.Context, dir string) (int, error)
}

type documentService struct {
	store     storage.Store
	producer  TaskProducer
	processor TaskProcessor
	catalog   repository.ChunkRepository
	index     vector.Index
}

// NewDocumentService wires ingestion. With a nil producer uploads are
// processed inline.
func NewDocumentService(store storage.Store, producer TaskProducer, processor TaskProcessor,
	catalog repository.ChunkRepository, index vector.Index) DocumentService {
	return &documentService{store: store, producer: producer, processor: processor, catalog: catalog, index: index}
}

func objectName(documentID string) string {
	return "documents/" + documentID + ".md"
}

// Upload archives the markdown and either queues or runs its ingestion.
func (s *documentService) Upload(ctx context.Context, req model.DocumentUploadRequest) (*model.DocumentUploadResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	name := objectName(req.DocumentID)
	if err := s.store.Put(ctx, name, []byte(req.Content), "text/markdown"); err != nil {
		return nil, fmt.Errorf("store document %s: %w", req.DocumentID, err)
	}
	task := tasks.IngestTask{DocumentID: req.DocumentID, ObjectName: name, FileName: req.DocumentID + ".md"}
	result := &model.DocumentUploadResult{DocumentID: req.DocumentID, ObjectName: name}

	if s.producer != nil {
		if err := s.producer.ProduceIngestTask(ctx, task); err != nil {
			return nil, fmt.Errorf("queue document %s: %w", req.DocumentID, err)
		}
		log.Infof("[DocumentService] document %s queued for ingestion", req.DocumentID)
		result.Status = model.UploadQueued
		return result, nil
	}

	if err := s.processor.Process(ctx, task); err != nil {
		return nil, err
	}
	chunks, err := s.catalog.FindByDocumentID(ctx, req.DocumentID)
	if err != nil {
		log.Warnf("[DocumentService] catalog lookup for %s failed: %v", req.DocumentID, err)
	}
	for _, c := range chunks {
		if c.Indexed {
			result.Chunks++
		} else {
			result.Failed++
		}
	}
	result.Status = model.UploadIndexed
	return result, nil
}

func (s *documentService) ListChunks(ctx context.Context, documentID string) ([]*model.ChunkRecord, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("document id is required: %w", model.ErrInvalidInput)
	}
	return s.catalog.FindByDocumentID(ctx, documentID)
}

// DeleteDocument removes a document from the index, the catalog and storage.
func (s *documentService) DeleteDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("document id is required: %w", model.ErrInvalidInput)
	}
	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete %s from index: %v: %w", documentID, err, model.ErrIndexUnavailable)
	}
	if err := s.catalog.ReplaceDocument(ctx, documentID, nil); err != nil {
		log.Warnf("[DocumentService] catalog cleanup for %s failed: %v", documentID, err)
	}
	if err := s.store.Remove(ctx, objectName(documentID)); err != nil {
		log.Warnf("[DocumentService] removing stored copy of %s failed: %v", documentID, err)
	}
	log.Infof("[DocumentService] document %s deleted", documentID)
	return nil
}

// IngestDirectory uploads every *.md file in dir, using the file name
// without extension as document id. A missing directory ingests nothing.
func (s *documentService) IngestDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("[DocumentService] seed directory %s does not exist", dir)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seed dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ingested := 0
	var errs []error
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := s.Upload(ctx, model.DocumentUploadRequest{DocumentID: id, Content: string(raw)}); err != nil {
			log.Errorf("[DocumentService] seeding %s failed: %v", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		ingested++
	}
	log.Infof("[DocumentService] seeded %d of %d documents from %s", ingested, len(names), dir)
	return ingested, errors.Join(errs...)
}
