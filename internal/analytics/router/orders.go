package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics"
	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/types"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/bigquery"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/payloads"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/registry"
)

const defaultCurrency = "usd"

// orderFields is what every order event contributes to a fact row.
type orderFields struct {
	OrderID   uuid.UUID
	UserID    uuid.UUID
	Status    enums.OrderStatus
	Total     string
	Currency  string
	ItemCount *int64
	Reason    string
	At        time.Time
}

func orderDecoders() *registry.Decoders[orderFields] {
	return registry.NewDecoders[orderFields]().
		Register(enums.EventOrderCreated, outbox.EnvelopeVersion, registry.JSONAs(func(e payloads.OrderCreatedEvent) orderFields {
			items := int64(e.ItemCount)
			return orderFields{
				OrderID: e.OrderID, UserID: e.UserID, Status: e.Status,
				Total: e.Total, Currency: e.Currency, ItemCount: &items, At: e.CreatedAt,
			}
		})).
		Register(enums.EventOrderPaid, outbox.EnvelopeVersion, registry.JSONAs(func(e payloads.OrderPaidEvent) orderFields {
			return orderFields{
				OrderID: e.OrderID, UserID: e.UserID, Status: enums.OrderStatusPaid,
				Total: e.Total, Currency: e.Currency, At: e.PaidAt,
			}
		})).
		Register(enums.EventOrderCancelled, outbox.EnvelopeVersion, registry.JSONAs(func(e payloads.OrderCancelledEvent) orderFields {
			return orderFields{
				OrderID: e.OrderID, UserID: e.UserID, Status: enums.OrderStatusCancelled,
				Total: e.Total, Currency: e.Currency, Reason: e.Reason, At: e.CancelledAt,
			}
		}))
}

func buildRow(envelope types.Envelope, f orderFields) (types.OrderFactRow, error) {
	cents, err := toCents(f.Total)
	if err != nil {
		return types.OrderFactRow{}, fmt.Errorf("%s total: %w", envelope.EventType, err)
	}
	raw, err := bigquery.JSON(envelope.Payload)
	if err != nil {
		return types.OrderFactRow{}, err
	}
	currency := strings.ToLower(strings.TrimSpace(f.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	row := types.OrderFactRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OrderID:    f.OrderID.String(),
		UserID:     f.UserID.String(),
		Status:     string(f.Status),
		TotalCents: cents,
		Currency:   currency,
		ItemCount:  f.ItemCount,
		OccurredAt: analytics.FactTimestamp(f.At, envelope.OccurredAt),
		Payload:    raw,
	}
	if reason := strings.TrimSpace(f.Reason); reason != "" {
		row.Reason = &reason
	}
	return row, nil
}

func toCents(total string) (int64, error) {
	if strings.TrimSpace(total) == "" {
		return 0, nil
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return 0, err
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
