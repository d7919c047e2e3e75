package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// Session is the in-progress checkout of one authenticated user. It lives in
// ephemeral storage and is discarded when idle past its TTL.
type Session struct {
	UserID            uuid.UUID          `json:"userId"`
	Step              enums.CheckoutStep `json:"step"`
	ShippingAddress   *types.Address     `json:"shippingAddress,omitempty"`
	SavedAddressID    *uuid.UUID         `json:"savedAddressId,omitempty"`
	SourceCartVersion int64              `json:"sourceCartVersion"`
	OrderID           *uuid.UUID         `json:"orderId,omitempty"`
	StartedAt         time.Time          `json:"startedAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// State pairs the session with the live cart it was started from.
type State struct {
	Session *Session   `json:"session"`
	Cart    *cart.View `json:"cart"`
	// CartChanged reports that the cart moved past SourceCartVersion.
	CartChanged bool `json:"cartChanged"`
}

// AddressInput selects a saved address or supplies one manually. Exactly one
// must be set.
type AddressInput struct {
	SavedAddressID *uuid.UUID     `json:"savedAddressId,omitempty"`
	Address        *types.Address `json:"address,omitempty"`
}

// ConfirmInput carries the redirect targets for the payment page.
type ConfirmInput struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// Confirmation is the result of handing a checkout off to payment.
type Confirmation struct {
	OrderID uuid.UUID         `json:"orderId"`
	Payment *payments.Session `json:"payment"`
}
