package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	pkgkafka "github.com/abdulbasit0-UI/storefront-backend/pkg/kafka"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	defaultKafkaAttempts = 5
	defaultKafkaBackoff  = time.Second
)

// Delivery is one outbox message pulled off a transport.
type Delivery struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// DeliveryFunc handles a delivery and reports whether it should be retried.
type DeliveryFunc func(ctx context.Context, d Delivery) (retry bool)

// Source feeds deliveries to the worker until ctx ends.
type Source interface {
	Receive(ctx context.Context, fn DeliveryFunc) error
}

// PubSubSource acks handled messages and nacks the ones asking for a retry.
type PubSubSource struct {
	sub *gcppubsub.Subscriber
}

func NewPubSubSource(sub *gcppubsub.Subscriber) (*PubSubSource, error) {
	if sub == nil {
		return nil, errors.New("pubsub subscriber is required")
	}
	return &PubSubSource{sub: sub}, nil
}

func (s *PubSubSource) Receive(ctx context.Context, fn DeliveryFunc) error {
	return s.sub.Receive(ctx, func(inner context.Context, msg *gcppubsub.Message) {
		if fn(inner, Delivery{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes}) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// KafkaSource reads a consumer group partition in order. Kafka has no nack,
// so a retry is attempted in place with linear backoff and the offset is
// committed once the message is handled or the attempts run out.
type KafkaSource struct {
	reader      pkgkafka.MessageReader
	logg        *logger.Logger
	maxAttempts int
	backoff     time.Duration
}

func NewKafkaSource(reader pkgkafka.MessageReader, logg *logger.Logger, maxAttempts int, backoff time.Duration) (*KafkaSource, error) {
	if reader == nil {
		return nil, errors.New("kafka reader is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultKafkaAttempts
	}
	if backoff <= 0 {
		backoff = defaultKafkaBackoff
	}
	return &KafkaSource{reader: reader, logg: logg, maxAttempts: maxAttempts, backoff: backoff}, nil
}

func (s *KafkaSource) Receive(ctx context.Context, fn DeliveryFunc) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}
		d := Delivery{
			ID:         fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
			Data:       msg.Value,
			Attributes: pkgkafka.Headers(msg),
		}

		for attempt := 1; fn(ctx, d); attempt++ {
			if attempt >= s.maxAttempts {
				logCtx := s.logg.WithFields(ctx, map[string]any{"message_id": d.ID, "attempts": attempt})
				s.logg.Error(logCtx, "dropping kafka delivery", errors.New("retries exhausted"))
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}
