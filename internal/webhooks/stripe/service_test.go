package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

type settleCall struct {
	sessionID string
	outcome   enums.PaymentOutcome
}

type stubSettler struct {
	calls []settleCall
	err   error
}

func (s *stubSettler) Settle(ctx context.Context, sessionID string, outcome enums.PaymentOutcome) (*payments.Settlement, error) {
	s.calls = append(s.calls, settleCall{sessionID: sessionID, outcome: outcome})
	if s.err != nil {
		return nil, s.err
	}
	return &payments.Settlement{Order: &models.Order{ID: uuid.New()}, Applied: true}, nil
}

func sessionEvent(t *testing.T, eventType stripe.EventType, paymentStatus stripe.CheckoutSessionPaymentStatus) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.CheckoutSession{
		ID:            "cs_test_1",
		Object:        "checkout.session",
		PaymentStatus: paymentStatus,
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func newTestService(t *testing.T, settler *stubSettler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Payments: settler})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestHandleEventMapsCheckoutOutcomes(t *testing.T) {
	cases := []struct {
		eventType stripe.EventType
		status    stripe.CheckoutSessionPaymentStatus
		want      enums.PaymentOutcome
	}{
		{stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusPaid, enums.PaymentOutcomeSucceeded},
		{stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, stripe.CheckoutSessionPaymentStatusPaid, enums.PaymentOutcomeSucceeded},
		{stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.CheckoutSessionPaymentStatusUnpaid, enums.PaymentOutcomeFailed},
		{stripe.EventTypeCheckoutSessionExpired, stripe.CheckoutSessionPaymentStatusUnpaid, enums.PaymentOutcomeExpired},
	}
	for _, tc := range cases {
		t.Run(string(tc.eventType), func(t *testing.T) {
			settler := &stubSettler{}
			if err := newTestService(t, settler).HandleEvent(context.Background(), sessionEvent(t, tc.eventType, tc.status)); err != nil {
				t.Fatalf("handle event: %v", err)
			}
			if len(settler.calls) != 1 {
				t.Fatalf("expected one settle call, got %d", len(settler.calls))
			}
			if settler.calls[0].outcome != tc.want || settler.calls[0].sessionID != "cs_test_1" {
				t.Fatalf("unexpected settle call %+v", settler.calls[0])
			}
		})
	}
}

func TestHandleEventWaitsForDelayedPayment(t *testing.T) {
	settler := &stubSettler{}
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, stripe.CheckoutSessionPaymentStatusUnpaid)
	if err := newTestService(t, settler).HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.calls) != 0 {
		t.Fatalf("unpaid completion must not settle the order")
	}
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	settler := &stubSettler{}
	event := &stripe.Event{ID: "evt_2", Type: stripe.EventTypeCustomerCreated, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := newTestService(t, settler).HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.calls) != 0 {
		t.Fatalf("unexpected settle call")
	}
}

func TestHandleEventAcknowledgesUnknownSession(t *testing.T) {
	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodeNotFound, "no order for stripe session")}
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, stripe.CheckoutSessionPaymentStatusUnpaid)
	if err := newTestService(t, settler).HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown sessions should be acknowledged, got %v", err)
	}
}

func TestHandleEventPropagatesSettleFailure(t *testing.T) {
	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodeInternal, "db down")}
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, stripe.CheckoutSessionPaymentStatusPaid)
	if err := newTestService(t, settler).HandleEvent(context.Background(), event); err == nil {
		t.Fatalf("expected settle failure to surface so stripe retries")
	}
}

func TestHandleEventRejectsMissingData(t *testing.T) {
	if err := newTestService(t, &stubSettler{}).HandleEvent(context.Background(), &stripe.Event{}); err == nil {
		t.Fatalf("expected validation error")
	}
}
