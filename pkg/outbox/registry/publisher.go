package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/payloads"
)

// Topics names the destinations for each aggregate on the active transport
// (Pub/Sub topic ids or Kafka topics).
type Topics struct {
	Orders string
	Carts  string
}

func (t Topics) byAggregate() map[enums.OutboxAggregateType]string {
	return map[enums.OutboxAggregateType]string{
		enums.AggregateOrder: t.Orders,
		enums.AggregateCart:  t.Carts,
	}
}

// ResolvedEvent is a validated outbox row ready for the wire.
type ResolvedEvent struct {
	Topic     string
	Aggregate enums.OutboxAggregateType
	Envelope  outbox.PayloadEnvelope
	Payload   any
}

// PermanentError marks a row that will never publish and belongs in the DLQ.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	return PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}

// EventRegistry validates outbox rows and decodes their payloads before
// publishing, so a malformed row is parked instead of reaching consumers.
type EventRegistry struct {
	topics   map[enums.OutboxAggregateType]string
	payloads *Decoders[any]
}

func NewEventRegistry(topics Topics) (*EventRegistry, error) {
	byAggregate := topics.byAggregate()
	for aggregate, topic := range byAggregate {
		if topic == "" {
			return nil, fmt.Errorf("%s topic is required", aggregate)
		}
	}

	v := outbox.EnvelopeVersion
	return &EventRegistry{
		topics: byAggregate,
		payloads: NewDecoders[any]().
			Register(enums.EventOrderCreated, v, typed[payloads.OrderCreatedEvent]).
			Register(enums.EventOrderPaid, v, typed[payloads.OrderPaidEvent]).
			Register(enums.EventOrderCancelled, v, typed[payloads.OrderCancelledEvent]).
			Register(enums.EventCartMerged, v, typed[payloads.CartMergedEvent]),
	}, nil
}

func typed[E any](data json.RawMessage) (any, error) {
	event := new(E)
	if err := json.Unmarshal(data, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Topics returns every distinct destination the registry publishes to.
func (r *EventRegistry) Topics() []string {
	out := make([]string, 0, len(r.topics))
	seen := make(map[string]bool, len(r.topics))
	for _, topic := range r.topics {
		if !seen[topic] {
			seen[topic] = true
			out = append(out, topic)
		}
	}
	return out
}

// Resolve checks the row against its event type and decodes the payload for
// the envelope version it was written with.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	if !r.payloads.Handles(event.EventType) {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if want := event.EventType.Aggregate(); want != event.AggregateType {
		return nil, Permanent(fmt.Errorf("aggregate mismatch: %s belongs to %s, row has %s", event.EventType, want, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload, err := r.payloads.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{
		Topic:     r.topics[event.AggregateType],
		Aggregate: event.AggregateType,
		Envelope:  envelope,
		Payload:   payload,
	}, nil
}
