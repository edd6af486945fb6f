package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/pkg/retry"
)

func TestOpenAIClientOrdersVectorsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.EmbeddingConfig{BaseURL: srv.URL, APIKey: "secret", Model: "m"})
	vectors, err := c.CreateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestOpenAIClientMarksClientErrorsPermanent(t *testing.T) {
	status := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.EmbeddingConfig{BaseURL: srv.URL})
	_, err := c.CreateEmbedding(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))

	status = http.StatusServiceUnavailable
	_, err = c.CreateEmbedding(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestOpenAIClientRejectsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.EmbeddingConfig{BaseURL: srv.URL})
	_, err := c.CreateEmbeddings(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestHashingClientIsDeterministicAndNormalised(t *testing.T) {
	h := NewHashingClient(64)
	a, err := h.CreateEmbedding(context.Background(), "Pump pressure drops")
	require.NoError(t, err)
	b, err := h.CreateEmbedding(context.Background(), "pump PRESSURE drops")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var sum float64
	for _, x := range a {
		sum += float64(x * x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type countingClient struct {
	HashingClient
	calls int
	err   error
}

func (c *countingClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.HashingClient.CreateEmbedding(ctx, text)
}

func TestCachedClientServesRepeatQueriesFromStore(t *testing.T) {
	inner := &countingClient{HashingClient: HashingClient{Dimensions: 8}}
	store := &memStore{data: map[string][]byte{}}
	c := NewCachedClient(inner, store, "m", time.Minute)

	first, err := c.CreateEmbedding(context.Background(), "valve stuck")
	require.NoError(t, err)
	second, err := c.CreateEmbedding(context.Background(), "valve stuck")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 2, store.gets)
}

func TestCachedClientPropagatesInnerErrors(t *testing.T) {
	boom := errors.New("down")
	inner := &countingClient{HashingClient: HashingClient{Dimensions: 8}, err: boom}
	c := NewCachedClient(inner, &memStore{data: map[string][]byte{}}, "m", time.Minute)

	_, err := c.CreateEmbedding(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}
