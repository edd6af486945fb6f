package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/tasks"
)

// MaxAttempts is how many times a failing task is processed before its
// offset is committed anyway.
const MaxAttempts = 3

// defaultRetryDelay is the first pause between attempts; it doubles each time.
const defaultRetryDelay = time.Second

// TaskProcessor is anything that can run an ingestion task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// AttemptCounter tracks failures per task across redeliveries.
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter keeps attempt counts in Redis for 24 hours.
func NewRedisCounter(rdb *redis.Client) AttemptCounter {
	return &redisCounter{rdb: rdb}
}

func (c *redisCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c *redisCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// MemoryCounter is an in-process AttemptCounter for deployments without Redis.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryCounter returns an empty counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
	return nil
}

// Consumer reads ingestion tasks and hands them to a TaskProcessor.
type Consumer struct {
	processor  TaskProcessor
	attempts   AttemptCounter
	retryDelay time.Duration
}

// NewConsumer creates a consumer that retries failed tasks in place and
// records attempts in attempts so a restart resumes the count.
func NewConsumer(processor TaskProcessor, attempts AttemptCounter) *Consumer {
	return &Consumer{processor: processor, attempts: attempts, retryDelay: defaultRetryDelay}
}

// Run consumes cfg.Topic until ctx is cancelled. Offsets are committed
// manually once Handle is done with a message: the reader does not redeliver
// uncommitted messages within a session, so retries happen inside Handle.
func (c *Consumer) Run(ctx context.Context, cfg config.KafkaConfig) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("[Kafka] close reader: %v", err)
		}
	}()
	log.Infof("[Kafka] consumer started, topic: %s, group: %s", cfg.Topic, cfg.GroupID)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("[Kafka] consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		log.Infof("[Kafka] message received, partition: %d, offset: %d", m.Partition, m.Offset)

		if !c.Handle(ctx, m.Value) {
			// Only on shutdown; the uncommitted message is redelivered to the next session.
			log.Infof("[Kafka] leaving offset %d uncommitted", m.Offset)
			continue
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("[Kafka] commit offset %d: %v", m.Offset, err)
		}
	}
}

// Handle processes one message value, retrying a failing task with
// exponential backoff until it has run MaxAttempts times in total, counting
// attempts made before a restart. It reports whether the offset should be
// committed, which is false only when ctx ends first.
func (c *Consumer) Handle(ctx context.Context, value []byte) bool {
	var task tasks.IngestTask
	if err := json.Unmarshal(value, &task); err != nil {
		log.Errorf("[Kafka] cannot decode message: %v, value: %s", err, string(value))
		return true
	}

	key := attemptsKey(task)
	delay := c.retryDelay
	for local := int64(1); ; local++ {
		err := c.processor.Process(ctx, task)
		if err == nil {
			log.Infof("[Kafka] task done, document: %s", task.DocumentID)
			_ = c.attempts.Reset(ctx, key)
			return true
		}
		log.Errorf("[Kafka] task failed, document: %s, error: %v", task.DocumentID, err)

		n, incErr := c.attempts.Incr(ctx, key)
		if incErr != nil {
			log.Warnf("[Kafka] attempt counter unavailable: %v", incErr)
			n = local
		}
		if n >= MaxAttempts {
			log.Errorf("[Kafka] task failed %d times, giving up, document: %s", n, task.DocumentID)
			_ = c.attempts.Reset(ctx, key)
			return true
		}

		log.Infof("[Kafka] retrying document %s in %s (attempt %d/%d)", task.DocumentID, delay, n+1, MaxAttempts)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func attemptsKey(task tasks.IngestTask) string {
	return fmt.Sprintf("kafka:attempts:%s:%s", task.DocumentID, task.ObjectName)
}
