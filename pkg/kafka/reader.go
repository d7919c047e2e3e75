package kafka

import (
	"context"
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
)

const maxFetchBytes = 10 << 20

// MessageReader is the subset of kafka.Reader a consumer uses. Offsets are
// committed explicitly once a message is handled.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader joins the configured consumer group on topic.
func NewReader(cfg config.KafkaConfig, topic string) (MessageReader, error) {
	brokers := normalizeBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka topic is required")
	}
	group := strings.TrimSpace(cfg.ConsumerGroup)
	if group == "" {
		return nil, errors.New("kafka consumer group is required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    maxFetchBytes,
		StartOffset: kafka.FirstOffset,
	}), nil
}

// Headers flattens message headers into the attribute map the sink wrote.
func Headers(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
