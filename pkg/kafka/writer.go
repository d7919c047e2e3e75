package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const dialTimeout = 5 * time.Second

// MessageWriter is the subset of kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes outbox messages onto Kafka topics with one writer per topic.
// Messages are keyed by aggregate id so per-aggregate order holds within a
// partition.
type Sink struct {
	brokers   []string
	logg      *logger.Logger
	newWriter func(topic string) MessageWriter

	mu      sync.Mutex
	writers map[string]MessageWriter
}

// NewSink builds a sink for the configured brokers.
func NewSink(cfg config.KafkaConfig, logg *logger.Logger) (*Sink, error) {
	brokers := normalizeBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	s := &Sink{
		brokers: brokers,
		logg:    logg,
		writers: make(map[string]MessageWriter),
	}
	s.newWriter = func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return s, nil
}

// NewSinkWith builds a sink around a caller-supplied writer factory.
func NewSinkWith(factory func(topic string) MessageWriter) *Sink {
	return &Sink{newWriter: factory, writers: make(map[string]MessageWriter)}
}

func (s *Sink) Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("kafka topic is required")
	}
	headers := make([]kafka.Header, 0, len(attrs))
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
	if err := s.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// Ping dials the first reachable broker.
func (s *Sink) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range s.brokers {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := (&kafka.Dialer{Timeout: dialTimeout}).DialContext(dialCtx, "tcp", broker)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = errors.New("no kafka brokers configured")
	}
	return fmt.Errorf("kafka ping: %w", lastErr)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for topic, w := range s.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
		delete(s.writers, topic)
	}
	return errors.Join(errs...)
}

func (s *Sink) writer(topic string) MessageWriter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.writers[topic]; ok {
		return w
	}
	w := s.newWriter(topic)
	s.writers[topic] = w
	return w
}

func normalizeBrokers(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, b := range strings.Split(entry, ",") {
			b = strings.TrimSpace(b)
			if b == "" {
				continue
			}
			if _, _, err := net.SplitHostPort(b); err != nil {
				b = net.JoinHostPort(b, "9092")
			}
			out = append(out, b)
		}
	}
	return out
}
