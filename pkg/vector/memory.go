package vector

import (
	"context"
	"math"
	"sync"

	"advisor-gpt-go/internal/model"
)

// MemoryIndex is an in-process brute-force cosine index.
type MemoryIndex struct {
	mu      sync.RWMutex
	dims    int
	records []memRecord
	byID    map[string]int
	nextSeq int64
}

type memRecord struct {
	model.EmbeddingRecord
	norm float64
	seq  int64
}

// NewMemoryIndex creates an empty index for dims-dimensional vectors.
func NewMemoryIndex(dims int) *MemoryIndex {
	return &MemoryIndex{dims: dims, byID: make(map[string]int)}
}

func (m *MemoryIndex) Dimensions() int { return m.dims }

// Len returns the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Upsert replaces existing chunk ids in place, keeping their original
// insertion sequence.
func (m *MemoryIndex) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDims(m.dims, records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		rec := memRecord{EmbeddingRecord: r, norm: norm(r.Vector)}
		if i, ok := m.byID[r.ChunkID]; ok {
			rec.seq = m.records[i].seq
			m.records[i] = rec
			continue
		}
		rec.seq = m.nextSeq
		m.nextSeq++
		m.byID[r.ChunkID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

// Search returns the k records most cosine-similar to vector.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]model.EvidenceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != m.dims {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}
	qn := norm(vector)

	m.mu.RLock()
	hits := make([]ranked, 0, len(m.records))
	for _, r := range m.records {
		hits = append(hits, ranked{item: evidenceFrom(r.EmbeddingRecord, cosine(vector, qn, r.Vector, r.norm)), seq: r.seq})
	}
	m.mu.RUnlock()

	out := sortRanked(hits)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// DeleteDocument drops every record of documentID.
func (m *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, r := range m.records {
		if r.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(m.records); i++ {
		m.records[i] = memRecord{}
	}
	m.records = kept
	m.byID = make(map[string]int, len(kept))
	for i, r := range kept {
		m.byID[r.ChunkID] = i
	}
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
