package payments

import (
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/payloads"
)

func settlementEvent(order *models.Order, target enums.OrderStatus, outcome enums.PaymentOutcome, reason string, at time.Time) outbox.DomainEvent {
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.SystemActor("payment_processor"),
		OccurredAt:    at,
	}
	if target == enums.OrderStatusPaid {
		sessionID := ""
		if order.StripeSessionID != nil {
			sessionID = *order.StripeSessionID
		}
		event.EventType = enums.EventOrderPaid
		event.Data = payloads.OrderPaidEvent{
			OrderID:         order.ID,
			UserID:          order.UserID,
			Total:           order.Total.StringFixed(2),
			Currency:        order.Currency,
			StripeSessionID: sessionID,
			PaidAt:          at,
		}
		return event
	}
	event.EventType = enums.EventOrderCancelled
	event.Data = payloads.OrderCancelledEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Total:       order.Total.StringFixed(2),
		Currency:    order.Currency,
		Outcome:     outcome,
		Reason:      reason,
		CancelledAt: at,
	}
	return event
}
