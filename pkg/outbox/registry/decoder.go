package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
)

// ErrNoDecoder is returned for an event type and envelope version nobody
// registered.
var ErrNoDecoder = errors.New("no decoder registered")

// DecodeFunc turns an envelope's data into the consumer's view T.
type DecodeFunc[T any] func(json.RawMessage) (T, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps (event type, envelope version) to a consumer decoder. It is
// filled at startup and read-only afterwards.
type Decoders[T any] struct {
	byKey map[decoderKey]DecodeFunc[T]
}

func NewDecoders[T any]() *Decoders[T] {
	return &Decoders[T]{byKey: make(map[decoderKey]DecodeFunc[T])}
}

// Register adds fn and returns d so registrations chain.
func (d *Decoders[T]) Register(eventType enums.OutboxEventType, version int, fn DecodeFunc[T]) *Decoders[T] {
	d.byKey[decoderKey{eventType: eventType, version: version}] = fn
	return d
}

// Handles reports whether any version of eventType is registered.
func (d *Decoders[T]) Handles(eventType enums.OutboxEventType) bool {
	for key := range d.byKey {
		if key.eventType == eventType {
			return true
		}
	}
	return false
}

func (d *Decoders[T]) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (T, error) {
	fn, ok := d.byKey[decoderKey{eventType: eventType, version: version}]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s@v%d", ErrNoDecoder, eventType, version)
	}
	return fn(data)
}

// JSONAs decodes data as the event payload E and projects it to T.
func JSONAs[E, T any](project func(E) T) DecodeFunc[T] {
	return func(data json.RawMessage) (T, error) {
		var event E
		if err := json.Unmarshal(data, &event); err != nil {
			var zero T
			return zero, err
		}
		return project(event), nil
	}
}
