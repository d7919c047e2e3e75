package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written into every staged payload. Consumers reject
// versions they do not know.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID    *uuid.UUID `json:"userId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Role      string     `json:"role,omitempty"`
}

// CustomerActor attributes an event to a shopper. sessionID is set when the
// action started from a guest session.
func CustomerActor(userID uuid.UUID, sessionID string) *ActorRef {
	return &ActorRef{UserID: &userID, SessionID: sessionID, Role: "customer"}
}

// SystemActor attributes an event to an automated component such as the
// payment processor or a cron job.
func SystemActor(role string) *ActorRef {
	return &ActorRef{Role: role}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and shipped
// verbatim to the transport.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeData unmarshals the event body into dest.
func (e PayloadEnvelope) DecodeData(dest any) error {
	if len(e.Data) == 0 {
		return errors.New("envelope has no data")
	}
	return json.Unmarshal(e.Data, dest)
}
