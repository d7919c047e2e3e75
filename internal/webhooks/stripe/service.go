package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
)

const outcomeIgnored = "ignored"

// ConsumerName scopes the idempotency claims on Stripe event ids.
const ConsumerName = "stripe-webhook"

type settler interface {
	Settle(ctx context.Context, sessionID string, outcome enums.PaymentOutcome) (*payments.Settlement, error)
}

type recorder interface {
	ObserveWebhook(eventType, outcome string)
}

type ServiceParams struct {
	Payments settler
	Metrics  recorder
	Logger   *logger.Logger
}

// Service turns Stripe Checkout Session events into order payment outcomes.
type Service struct {
	payments settler
	metrics  recorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	rec := params.Metrics
	if rec == nil {
		rec = (*metrics.Storefront)(nil)
	}
	return &Service{payments: params.Payments, metrics: rec, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)

	var session stripe.CheckoutSession
	outcome, relevant := outcomeFor(event.Type)
	if !relevant {
		s.metrics.ObserveWebhook(eventType, outcomeIgnored)
		return nil
	}
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.metrics.ObserveWebhook(eventType, metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if session.ID == "" {
		s.metrics.ObserveWebhook(eventType, metrics.OutcomeError)
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	// Completed sessions for delayed payment methods settle later through
	// async_payment_succeeded or async_payment_failed.
	if event.Type == stripe.EventTypeCheckoutSessionCompleted && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.metrics.ObserveWebhook(eventType, outcomeIgnored)
		return nil
	}

	settled, err := s.payments.Settle(ctx, session.ID, outcome)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.warn(ctx, event, session.ID, "stripe session has no order")
			s.metrics.ObserveWebhook(eventType, outcomeIgnored)
			return nil
		}
		s.metrics.ObserveWebhook(eventType, metrics.OutcomeError)
		return err
	}

	result := metrics.OutcomeOK
	if !settled.Applied {
		result = metrics.OutcomeReused
	}
	s.metrics.ObserveWebhook(eventType, result)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, settled.Order.ID.String()), map[string]any{
			"stripe_event_id":   event.ID,
			"stripe_session_id": session.ID,
			"outcome":           string(outcome),
			"applied":           settled.Applied,
		})
		s.logg.Info(logCtx, fmt.Sprintf("stripe %s handled", eventType))
	}
	return nil
}

func (s *Service) warn(ctx context.Context, event *stripe.Event, sessionID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_session_id": sessionID,
	}), msg)
}

func outcomeFor(eventType stripe.EventType) (enums.PaymentOutcome, bool) {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return enums.PaymentOutcomeSucceeded, true
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		return enums.PaymentOutcomeFailed, true
	case stripe.EventTypeCheckoutSessionExpired:
		return enums.PaymentOutcomeExpired, true
	default:
		return "", false
	}
}
