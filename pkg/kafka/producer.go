// Package kafka carries ingestion tasks over a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/tasks"
)

// Producer publishes ingestion tasks.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a writer for cfg.Topic. Brokers is a comma separated list.
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("[Kafka] producer ready, topic: %s", cfg.Topic)
	return &Producer{writer: w}
}

// ProduceIngestTask sends task keyed by document id so that versions of the
// same document stay ordered on one partition.
func (p *Producer) ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error {
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: value,
	})
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
