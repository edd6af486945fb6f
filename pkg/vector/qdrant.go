package vector

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/log"
)

const metaPrefix = "meta_"

// QdrantIndex stores records as points in a cosine collection. Point ids are
// UUIDv5 values derived from the chunk id, so upserts are idempotent.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       int
	seq        atomic.Int64
}

// NewQdrantIndex connects over gRPC and ensures the collection exists.
func NewQdrantIndex(ctx context.Context, cfg config.QdrantConfig, dims int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	q := &QdrantIndex{client: client, collection: cfg.Collection, dims: dims}
	q.seq.Store(time.Now().UnixNano())
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *QdrantIndex) Dimensions() int { return q.dims }

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	existing, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range existing {
		if name == q.collection {
			log.Infof("[Qdrant] collection '%s' already exists", q.collection)
			return nil
		}
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	log.Infof("[Qdrant] collection '%s' created", q.collection)
	return nil
}

// Upsert writes records as points keyed by their chunk id.
func (q *QdrantIndex) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if err := checkDims(q.dims, records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ChunkID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(toPayload(r, q.seq.Add(1))),
		}
	}
	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %v: %w", err, model.ErrIndexUnavailable)
	}
	return nil
}

// Search queries the collection for the k nearest points.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]model.EvidenceItem, error) {
	if len(vector) != q.dims {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}
	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %v: %w", err, model.ErrIndexUnavailable)
	}

	hits := make([]ranked, 0, len(points))
	for _, p := range points {
		rec, seq := fromPayload(p.GetPayload())
		hits = append(hits, ranked{item: evidenceFrom(rec, float64(p.GetScore())), seq: seq})
	}
	return sortRanked(hits), nil
}

// DeleteDocument removes every point whose payload matches documentID.
func (q *QdrantIndex) DeleteDocument(ctx context.Context, documentID string) error {
	wait := true
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %v: %w", documentID, err, model.ErrIndexUnavailable)
	}
	return nil
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("chunk:"+chunkID)).String()
}

func toPayload(r model.EmbeddingRecord, seq int64) map[string]any {
	payload := map[string]any{
		"chunk_id":      r.ChunkID,
		"document_id":   r.DocumentID,
		"text_content":  r.Text,
		"model_version": r.ModelID,
		"seq":           seq,
	}
	for k, v := range r.Metadata {
		payload[metaPrefix+k] = v
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) (model.EmbeddingRecord, int64) {
	rec := model.EmbeddingRecord{Metadata: map[string]string{}}
	var seq int64
	for k, v := range payload {
		switch {
		case k == "chunk_id":
			rec.ChunkID = v.GetStringValue()
		case k == "document_id":
			rec.DocumentID = v.GetStringValue()
		case k == "text_content":
			rec.Text = v.GetStringValue()
		case k == "model_version":
			rec.ModelID = v.GetStringValue()
		case k == "seq":
			seq = v.GetIntegerValue()
		case strings.HasPrefix(k, metaPrefix):
			rec.Metadata[strings.TrimPrefix(k, metaPrefix)] = v.GetStringValue()
		}
	}
	return rec, seq
}
