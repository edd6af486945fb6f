package vector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/log"
)

// ElasticsearchIndex stores records as dense_vector documents keyed by chunk id.
type ElasticsearchIndex struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
	seq       atomic.Int64
}

// esDocument is the stored document shape.
type esDocument struct {
	ChunkID      string            `json:"chunk_id"`
	DocumentID   string            `json:"document_id"`
	TextContent  string            `json:"text_content"`
	Vector       []float32         `json:"vector"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ModelVersion string            `json:"model_version,omitempty"`
	Seq          int64             `json:"seq"`
}

// NewElasticsearchIndex connects and creates the index when it is missing.
func NewElasticsearchIndex(ctx context.Context, esCfg config.ElasticsearchConfig, dims int) (*ElasticsearchIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return newElasticsearchIndex(ctx, client, esCfg.IndexName, dims)
}

func newElasticsearchIndex(ctx context.Context, client *elasticsearch.Client, indexName string, dims int) (*ElasticsearchIndex, error) {
	idx := &ElasticsearchIndex{client: client, indexName: indexName, dims: dims}
	idx.seq.Store(time.Now().UnixNano())
	if err := idx.createIndexIfNotExists(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (e *ElasticsearchIndex) Dimensions() int { return e.dims }

func (e *ElasticsearchIndex) createIndexIfNotExists(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.indexName}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", e.indexName, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[Elasticsearch] index '%s' already exists", e.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: unexpected status %d", e.indexName, res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"metadata": { "type": "flattened" },
				"model_version": { "type": "keyword" },
				"seq": { "type": "long" }
			}
		}
	}`, e.dims)

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", e.indexName, res.String())
	}
	log.Infof("[Elasticsearch] index '%s' created", e.indexName)
	return nil
}

// Upsert indexes each record under its chunk id, refreshing on the last one
// so the batch is searchable when Upsert returns.
func (e *ElasticsearchIndex) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if err := checkDims(e.dims, records); err != nil {
		return err
	}
	for i, r := range records {
		body, err := json.Marshal(esDocument{
			ChunkID:      r.ChunkID,
			DocumentID:   r.DocumentID,
			TextContent:  r.Text,
			Vector:       r.Vector,
			Metadata:     r.Metadata,
			ModelVersion: r.ModelID,
			Seq:          e.seq.Add(1),
		})
		if err != nil {
			return err
		}
		refresh := "false"
		if i == len(records)-1 {
			refresh = "true"
		}
		req := esapi.IndexRequest{
			Index:      e.indexName,
			DocumentID: r.ChunkID,
			Body:       bytes.NewReader(body),
			Refresh:    refresh,
		}
		res, err := req.Do(ctx, e.client)
		if err != nil {
			return fmt.Errorf("index chunk %s: %v: %w", r.ChunkID, err, model.ErrIndexUnavailable)
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			return fmt.Errorf("index chunk %s: %s: %w", r.ChunkID, msg, model.ErrIndexUnavailable)
		}
		res.Body.Close()
	}
	return nil
}

// Search runs a kNN query. Elasticsearch reports cosine as (1+cos)/2, which
// is mapped back to cosine.
func (e *ElasticsearchIndex) Search(ctx context.Context, vector []float32, k int) ([]model.EvidenceItem, error) {
	if len(vector) != e.dims {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size":    k,
		"_source": []string{"chunk_id", "document_id", "text_content", "metadata", "model_version", "seq"},
	}
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %v: %w", err, model.ErrIndexUnavailable)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned %s: %s: %w", res.Status(), body, model.ErrIndexUnavailable)
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source esDocument `json:"_source"`
				Score  float64    `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("decode search response: %v: %w", err, model.ErrIndexUnavailable)
	}

	hits := make([]ranked, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		rec := model.EmbeddingRecord{
			ChunkID:    h.Source.ChunkID,
			DocumentID: h.Source.DocumentID,
			Text:       h.Source.TextContent,
			Metadata:   h.Source.Metadata,
		}
		hits = append(hits, ranked{item: evidenceFrom(rec, 2*h.Score-1), seq: h.Source.Seq})
	}
	out := sortRanked(hits)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// DeleteDocument removes every chunk of documentID with delete-by-query.
func (e *ElasticsearchIndex) DeleteDocument(ctx context.Context, documentID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"document_id": documentID},
		},
	})
	if err != nil {
		return err
	}
	res, err := e.client.DeleteByQuery(
		[]string{e.indexName},
		bytes.NewReader(body),
		e.client.DeleteByQuery.WithContext(ctx),
		e.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete document %s: %v: %w", documentID, err, model.ErrIndexUnavailable)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete document %s: %s: %w", documentID, res.String(), model.ErrIndexUnavailable)
	}
	return nil
}
