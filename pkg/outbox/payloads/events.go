package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
)

// OrderLine is the per-line slice of an order event.
type OrderLine struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	UnitPrice   string    `json:"unitPrice"`
	Quantity    int       `json:"quantity"`
}

// OrderCreatedEvent is emitted in the same transaction that assembles an order.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	UserID    uuid.UUID         `json:"userId"`
	Status    enums.OrderStatus `json:"status"`
	Currency  string            `json:"currency"`
	Total     string            `json:"total"`
	ItemCount int               `json:"itemCount"`
	Lines     []OrderLine       `json:"lines"`
	CreatedAt time.Time         `json:"createdAt"`
}

// OrderPaidEvent is emitted when the payment processor confirms settlement.
type OrderPaidEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	UserID          uuid.UUID `json:"userId"`
	Total           string    `json:"total"`
	Currency        string    `json:"currency"`
	StripeSessionID string    `json:"stripeSessionId"`
	PaidAt          time.Time `json:"paidAt"`
}

// OrderCancelledEvent is emitted when a pending order is cancelled and its
// reserved stock released.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID            `json:"orderId"`
	UserID      uuid.UUID            `json:"userId"`
	Total       string               `json:"total"`
	Currency    string               `json:"currency"`
	Outcome     enums.PaymentOutcome `json:"outcome,omitempty"`
	Reason      string               `json:"reason"`
	CancelledAt time.Time            `json:"cancelledAt"`
}

// CartMergedEvent records a guest cart drained into a user cart at login.
type CartMergedEvent struct {
	CartID        uuid.UUID   `json:"cartId"`
	UserID        uuid.UUID   `json:"userId"`
	SessionID     string      `json:"sessionId"`
	MergedLines   int         `json:"mergedLines"`
	ClampedLines  int         `json:"clampedLines"`
	SkippedLines  int         `json:"skippedLines"`
	ProductIDs    []uuid.UUID `json:"productIds"`
	ResultVersion int64       `json:"resultVersion"`
}
