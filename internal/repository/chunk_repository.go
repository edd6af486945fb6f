package repository

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"

	"advisor-gpt-go/internal/model"
)

// ChunkRepository is the catalog of chunks each document was split into.
type ChunkRepository interface {
	ReplaceDocument(ctx context.Context, documentID string, records []*model.ChunkRecord) error
	FindByDocumentID(ctx context.Context, documentID string) ([]*model.ChunkRecord, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository returns a gorm-backed ChunkRepository.
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// ReplaceDocument drops the previous rows of documentID and inserts records
// in one transaction.
func (r *chunkRepository) ReplaceDocument(ctx context.Context, documentID string, records []*model.ChunkRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.ChunkRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
}

func (r *chunkRepository) FindByDocumentID(ctx context.Context, documentID string) ([]*model.ChunkRecord, error) {
	var records []*model.ChunkRecord
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("seq asc").Find(&records).Error
	return records, err
}

// MemoryChunkRepository serves the catalog when no database is configured.
type MemoryChunkRepository struct {
	mu    sync.RWMutex
	byDoc map[string][]*model.ChunkRecord
}

// NewMemoryChunkRepository returns an empty in-process catalog.
func NewMemoryChunkRepository() *MemoryChunkRepository {
	return &MemoryChunkRepository{byDoc: make(map[string][]*model.ChunkRecord)}
}

// ReplaceDocument swaps all rows of documentID for records.
func (r *MemoryChunkRepository) ReplaceDocument(_ context.Context, documentID string, records []*model.ChunkRecord) error {
	cp := make([]*model.ChunkRecord, len(records))
	for i, rec := range records {
		c := *rec
		cp[i] = &c
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i].Seq < cp[j].Seq })

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(cp) == 0 {
		delete(r.byDoc, documentID)
		return nil
	}
	r.byDoc[documentID] = cp
	return nil
}

// FindByDocumentID returns the rows of documentID ordered by seq.
func (r *MemoryChunkRepository) FindByDocumentID(_ context.Context, documentID string) ([]*model.ChunkRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.ChunkRecord, len(r.byDoc[documentID]))
	copy(out, r.byDoc[documentID])
	return out, nil
}
