// Package router turns order lifecycle envelopes into order_facts rows.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/types"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer stores the rows produced by the router.
type Writer interface {
	InsertOrderFact(ctx context.Context, row types.OrderFactRow) error
}

type Router struct {
	writer   Writer
	logg     *logger.Logger
	decoders *registry.Decoders[orderFields]
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{writer: writer, logg: logg, decoders: orderDecoders()}, nil
}

// Handle writes one fact row for envelope. Event types without a decoder
// return ErrUnsupportedEventType so the caller can ack and move on.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	if !r.decoders.Handles(envelope.EventType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	fields, err := r.decoders.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	row, err := buildRow(envelope, fields)
	if err != nil {
		return err
	}
	r.logg.Debug(r.logg.WithOrderID(ctx, row.OrderID), "writing order fact")
	return r.writer.InsertOrderFact(ctx, row)
}
