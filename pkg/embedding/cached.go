package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"advisor-gpt-go/pkg/log"
)

// Store is the key/value surface the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore adapts a go-redis client to Store.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

type cachedClient struct {
	Client
	store Store
	model string
	ttl   time.Duration
}

// NewCachedClient serves single-text embeddings (query embeddings) from store
// when present. Batch calls, used at ingestion, bypass the cache. Cache
// errors degrade to a direct call.
func NewCachedClient(inner Client, store Store, model string, ttl time.Duration) Client {
	return &cachedClient{Client: inner, store: store, model: model, ttl: ttl}
}

func (c *cachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.model, text)
	if b, err := c.store.Get(ctx, key); err == nil {
		var v []float32
		if jerr := json.Unmarshal(b, &v); jerr == nil && len(v) > 0 {
			return v, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Warnf("[EmbeddingCache] get %s failed: %v", key, err)
	}

	v, err := c.Client.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if b, jerr := json.Marshal(v); jerr == nil {
		if serr := c.store.Set(ctx, key, b, c.ttl); serr != nil {
			log.Warnf("[EmbeddingCache] set %s failed: %v", key, serr)
		}
	}
	return v, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(sum[:])
}
