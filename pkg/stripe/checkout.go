package stripe

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// CheckoutSessions exposes the Stripe Checkout Session calls used for order payment.
type CheckoutSessions interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	Expire(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type checkoutSessions struct{}

// NewCheckoutSessions returns the live Checkout Session client. The package
// level key must already be set by NewClient.
func NewCheckoutSessions(client *Client) (CheckoutSessions, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return checkoutSessions{}, nil
}

func (checkoutSessions) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.New(params)
}

func (checkoutSessions) Get(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	return session.Get(id, params)
}

func (checkoutSessions) Expire(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	return session.Expire(id, params)
}

// IsClientError reports whether Stripe rejected the request itself rather
// than failing to answer it.
func IsClientError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	code := stripeErr.HTTPStatusCode
	return code >= 400 && code < 500 && code != 429 && code != 409
}
