package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
)

// Envelope is a delivered outbox event: the stored payload envelope joined
// with the transport attributes. Payload is the event data alone.
type Envelope struct {
	Version       int
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// Validate rejects envelopes no retry can repair: an event id that is not a
// UUID, or an aggregate that does not own the event type.
func (e Envelope) Validate() error {
	if _, err := uuid.Parse(e.EventID); err != nil {
		return fmt.Errorf("event id %q: %w", e.EventID, err)
	}
	if want := e.EventType.Aggregate(); want != e.AggregateType {
		return fmt.Errorf("%s belongs to %s aggregates, got %s", e.EventType, want, e.AggregateType)
	}
	return nil
}
