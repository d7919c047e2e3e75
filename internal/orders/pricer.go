package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// PricingInput is what a Pricer sees when an order is assembled.
type PricingInput struct {
	UserID          uuid.UUID
	Subtotal        decimal.Decimal
	Lines           []models.OrderLine
	ShippingAddress types.Address
}

// Pricer computes tax and shipping adjustments added to the subtotal.
type Pricer interface {
	Adjustments(ctx context.Context, in PricingInput) (decimal.Decimal, error)
}

// ZeroPricer adds nothing.
type ZeroPricer struct{}

func (ZeroPricer) Adjustments(context.Context, PricingInput) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
