package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
)

type recordingWriter struct {
	topic  string
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestSinkPublishKeysAndHeaders(t *testing.T) {
	writers := map[string]*recordingWriter{}
	sink := NewSinkWith(func(topic string) MessageWriter {
		w := &recordingWriter{topic: topic}
		writers[topic] = w
		return w
	})

	err := sink.Publish(context.Background(), "storefront.orders", "order-1", []byte(`{"a":1}`), map[string]string{"event_type": "order_paid"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := sink.Publish(context.Background(), "storefront.orders", "order-2", []byte(`{}`), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	w := writers["storefront.orders"]
	if w == nil || len(w.msgs) != 2 {
		t.Fatalf("expected one cached writer with two messages, got %+v", writers)
	}
	if string(w.msgs[0].Key) != "order-1" {
		t.Fatalf("unexpected key %q", w.msgs[0].Key)
	}
	if len(w.msgs[0].Headers) != 1 || w.msgs[0].Headers[0].Key != "event_type" {
		t.Fatalf("unexpected headers %+v", w.msgs[0].Headers)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Fatalf("writer not closed")
	}
}

func TestSinkPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	sink := NewSinkWith(func(string) MessageWriter { return &recordingWriter{err: boom} })
	err := sink.Publish(context.Background(), "storefront.carts", "k", nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
	if err := sink.Publish(context.Background(), " ", "k", nil, nil); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}

func TestNewSinkNormalizesBrokers(t *testing.T) {
	sink, err := NewSink(config.KafkaConfig{Brokers: []string{"kafka-a:9093, kafka-b", ""}}, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if len(sink.brokers) != 2 || sink.brokers[0] != "kafka-a:9093" || sink.brokers[1] != "kafka-b:9092" {
		t.Fatalf("unexpected brokers %v", sink.brokers)
	}
	if _, err := NewSink(config.KafkaConfig{}, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
