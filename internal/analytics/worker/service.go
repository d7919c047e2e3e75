package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"


	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/router"
	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/types"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
)

// ConsumerName scopes the idempotency claims of this worker.
const ConsumerName = "analytics"

// Handler defines how to process analytics envelopes.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

// deliveryGuard claims event ids; see idempotency.Guard.
type deliveryGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Service turns order events into analytics rows, whatever transport the
// outbox publisher uses. Each event id is handled at most once.
type Service struct {
	source  Source
	handler Handler
	manager deliveryGuard
	logg    *logger.Logger
}

func NewService(source Source, handler Handler, manager deliveryGuard, logg *logger.Logger) (*Service, error) {
	switch {
	case source == nil:
		return nil, errors.New("analytics source is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{source: source, handler: handler, manager: manager, logg: logg}, nil
}

// Run consumes until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.source.Receive(ctx, s.process)
}

// process returns true when the delivery should come back later. Malformed
// deliveries are dropped since a retry cannot fix them.
func (s *Service) process(ctx context.Context, d Delivery) bool {
	logCtx := s.logg.WithField(ctx, "message_id", d.ID)

	envelope, err := decodeEnvelope(d)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid analytics envelope")
		return false
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
	})

	if err := envelope.Validate(); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "rejected analytics envelope")
		return false
	}

	already, err := s.manager.CheckAndMark(logCtx, envelope.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		s.logg.Debug(logCtx, "event already processed")
		return false
	}

	if err := s.handler.Handle(logCtx, *envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Debug(logCtx, "event not tracked by analytics")
			return false
		}
		s.logg.Error(logCtx, "analytics handler failed", err)
		if delErr := s.manager.Delete(logCtx, envelope.EventID); delErr != nil {
			s.logg.Error(logCtx, "failed to release idempotency key", delErr)
		}
		return true
	}

	s.logg.Info(logCtx, "analytics event handled")
	return false
}

// decodeEnvelope reads the stored outbox payload and the routing attributes
// the publisher attached. The payload wins for event id and occurrence time.
func decodeEnvelope(d Delivery) (*types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(d.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	attr := func(key string) string { return strings.TrimSpace(d.Attributes[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = parsed
		}
	}

	version := stored.Version
	if version == 0 {
		version = outbox.EnvelopeVersion
	}

	return &types.Envelope{
		Version:       version,
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
