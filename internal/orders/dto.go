package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/pagination"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// ListFilters describe the inputs supported by order listings.
type ListFilters struct {
	Status *enums.OrderStatus
	Params pagination.Params
}

// OrderItemResponse is one snapshotted line of an order.
type OrderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	LineTotal   string    `json:"lineTotal"`
	Image       *string   `json:"image,omitempty"`
}

// OrderResponse is the transport shape of an order.
type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"userId"`
	Status          enums.OrderStatus   `json:"status"`
	Currency        string              `json:"currency"`
	Subtotal        string              `json:"subtotal"`
	Adjustments     string              `json:"adjustments"`
	Total           string              `json:"total"`
	ShippingAddress types.Address       `json:"shippingAddress"`
	StripeSessionID *string             `json:"stripeSessionId,omitempty"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Items           []OrderItemResponse `json:"items"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// FromModel maps an order row to its response shape.
func FromModel(o *models.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	items := make([]OrderItemResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, OrderItemResponse{
			ID:          line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.UnitPrice.StringFixed(2),
			Quantity:    line.Quantity,
			LineTotal:   line.LineTotal.StringFixed(2),
			Image:       line.Image,
		})
	}
	return &OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Currency:        o.Currency,
		Subtotal:        o.Subtotal.StringFixed(2),
		Adjustments:     o.Adjustments.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		StripeSessionID: o.StripeSessionID,
		PaidAt:          o.PaidAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
	}
}
