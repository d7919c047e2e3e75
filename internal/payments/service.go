package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/orders"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	pkgstripe "github.com/abdulbasit0-UI/storefront-backend/pkg/stripe"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultExpiryBatch    = 100
	metadataOrderID       = "order_id"
)

// Inventory settles the stock reserved by a pending order.
type Inventory interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type recorder interface {
	ObservePaymentSession(outcome string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionInput requests a hosted payment page for a pending order.
type SessionInput struct {
	OrderID uuid.UUID
	// UserID, when set, restricts the call to orders owned by that user.
	UserID     *uuid.UUID
	SuccessURL string
	CancelURL  string
}

// Session is the payment page handed back to the shopper.
type Session struct {
	OrderID     uuid.UUID `json:"orderId"`
	SessionID   string    `json:"sessionId"`
	RedirectURL string    `json:"redirectUrl"`
	Reused      bool      `json:"reused"`
}

// Settlement reports the order after a payment outcome was applied. Applied
// is false when the order had already left pending.
type Settlement struct {
	Order   *models.Order
	Applied bool
}

// ExpiryReport summarises one stale pending order sweep.
type ExpiryReport struct {
	Scanned   int
	Cancelled int
	Skipped   int
}

// Service is the payment gateway for orders.
type Service interface {
	CreateSession(ctx context.Context, in SessionInput) (*Session, error)
	Settle(ctx context.Context, sessionID string, outcome enums.PaymentOutcome) (*Settlement, error)
	MarkPaid(ctx context.Context, sessionID string) (*Settlement, error)
	MarkCancelled(ctx context.Context, sessionID string) (*Settlement, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (ExpiryReport, error)
}

type ServiceParams struct {
	Orders     orders.Repository
	Inventory  Inventory
	Tx         txRunner
	Sessions   pkgstripe.CheckoutSessions
	Locker     cart.Locker
	Outbox     outboxEmitter
	Metrics    recorder
	Logger     *logger.Logger
	Currency   string
	Timeout    time.Duration
	SuccessURL string
	CancelURL  string
}

type service struct {
	orders     orders.Repository
	inventory  Inventory
	tx         txRunner
	sessions   pkgstripe.CheckoutSessions
	locker     cart.Locker
	outbox     outboxEmitter
	metrics    recorder
	logg       *logger.Logger
	currency   string
	timeout    time.Duration
	successURL string
	cancelURL  string
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("stripe checkout sessions required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	locker := params.Locker
	if locker == nil {
		locker = cart.NewKeyedMutex(0)
	}
	rec := params.Metrics
	if rec == nil {
		rec = (*metrics.Storefront)(nil)
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{
		orders:     params.Orders,
		inventory:  params.Inventory,
		tx:         params.Tx,
		sessions:   params.Sessions,
		locker:     locker,
		outbox:     params.Outbox,
		metrics:    rec,
		logg:       params.Logger,
		currency:   currency,
		timeout:    timeout,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateSession returns the live Stripe Checkout Session for a pending order,
// creating one when the order has none or its previous session expired.
func (s *service) CreateSession(ctx context.Context, in SessionInput) (*Session, error) {
	if in.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	successURL, cancelURL, err := s.redirects(in)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, orderLockKey(in.OrderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		s.metrics.ObservePaymentSession(metrics.OutcomeRejected)
		return nil, orderNotPending(order)
	}

	idempotencyKey := "order:" + order.ID.String()
	if order.StripeSessionID != nil {
		existing, err := s.getSession(ctx, *order.StripeSessionID)
		if err != nil {
			s.metrics.ObservePaymentSession(metrics.OutcomeError)
			return nil, err
		}
		switch existing.Status {
		case stripe.CheckoutSessionStatusOpen:
			s.metrics.ObservePaymentSession(metrics.OutcomeReused)
			return &Session{OrderID: order.ID, SessionID: existing.ID, RedirectURL: existing.URL, Reused: true}, nil
		case stripe.CheckoutSessionStatusComplete:
			s.metrics.ObservePaymentSession(metrics.OutcomeRejected)
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already submitted for order").
				WithReason(pkgerrors.ReasonOrderNotPending).
				WithDetails(map[string]any{"orderId": order.ID, "sessionId": existing.ID})
		}
		idempotencyKey = idempotencyKey + ":after:" + existing.ID
	}

	params, err := s.sessionParams(order, successURL, cancelURL)
	if err != nil {
		return nil, err
	}
	params.SetIdempotencyKey(idempotencyKey)

	created, err := s.createSession(ctx, params)
	if err != nil {
		s.metrics.ObservePaymentSession(metrics.OutcomeError)
		return nil, err
	}

	stored, err := s.orders.SetStripeSession(ctx, order.ID, created.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stripe session")
	}
	if !stored {
		// The order settled while the session was being created.
		if _, expireErr := s.expireSession(ctx, created.ID); expireErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stripe_session_id", created.ID), "failed to expire orphaned stripe session")
		}
		s.metrics.ObservePaymentSession(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is no longer pending").
			WithReason(pkgerrors.ReasonOrderNotPending).
			WithDetails(map[string]any{"orderId": order.ID})
	}

	s.metrics.ObservePaymentSession(metrics.OutcomeOK)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{"stripe_session_id": created.ID})
		s.logg.Info(logCtx, "stripe checkout session created")
	}
	return &Session{OrderID: order.ID, SessionID: created.ID, RedirectURL: created.URL}, nil
}

func (s *service) MarkPaid(ctx context.Context, sessionID string) (*Settlement, error) {
	return s.Settle(ctx, sessionID, enums.PaymentOutcomeSucceeded)
}

func (s *service) MarkCancelled(ctx context.Context, sessionID string) (*Settlement, error) {
	return s.Settle(ctx, sessionID, enums.PaymentOutcomeExpired)
}

// Settle applies a processor outcome to the order holding sessionID. Repeated
// outcomes for an order that already left pending are no-ops.
func (s *service) Settle(ctx context.Context, sessionID string, outcome enums.PaymentOutcome) (*Settlement, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe session id is required")
	}
	target, err := outcome.TargetStatus()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment outcome")
	}

	order, err := s.orders.FindByStripeSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for stripe session").
				WithDetails(map[string]any{"sessionId": sessionID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by stripe session")
	}

	unlock, err := s.locker.Lock(ctx, orderLockKey(order.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.transition(ctx, order, target, outcome, string(outcome))
}

// ExpireStale cancels pending orders created before cutoff whose payment page
// can no longer be completed, releasing their reserved stock.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (ExpiryReport, error) {
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	var report ExpiryReport
	stale, err := s.orders.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale pending orders")
	}

	var errs error
	for i := range stale {
		order := &stale[i]
		report.Scanned++
		cancelled, err := s.expireOrder(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if cancelled {
			report.Cancelled++
		} else {
			report.Skipped++
		}
	}
	return report, errs
}

func (s *service) expireOrder(ctx context.Context, order *models.Order) (bool, error) {
	unlock, err := s.locker.Lock(ctx, orderLockKey(order.ID))
	if err != nil {
		return false, err
	}
	defer unlock()

	if order.StripeSessionID != nil {
		existing, err := s.getSession(ctx, *order.StripeSessionID)
		if err != nil {
			return false, err
		}
		if existing.Status == stripe.CheckoutSessionStatusOpen || existing.Status == stripe.CheckoutSessionStatusComplete {
			return false, nil
		}
	}
	settled, err := s.transition(ctx, order, enums.OrderStatusCancelled, enums.PaymentOutcomeExpired, "pending order expired")
	if err != nil {
		return false, err
	}
	return settled.Applied, nil
}

func (s *service) transition(ctx context.Context, order *models.Order, target enums.OrderStatus, outcome enums.PaymentOutcome, reason string) (*Settlement, error) {
	at := s.now()
	applied := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.orders.WithTx(tx).TransitionFromPending(ctx, order.ID, target, at)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true
		for _, line := range order.Lines {
			if target == enums.OrderStatusPaid {
				err = s.inventory.Commit(ctx, tx, line.ProductID, line.Quantity)
			} else {
				err = s.inventory.Release(ctx, tx, line.ProductID, line.Quantity)
			}
			if err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, settlementEvent(order, target, outcome, reason, at))
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order")
	}

	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"outcome": string(outcome),
			"status":  string(current.Status),
			"applied": applied,
		})
		s.logg.Info(logCtx, "payment outcome applied")
	}
	return &Settlement{Order: current, Applied: applied}, nil
}

func (s *service) loadOrder(ctx context.Context, in SessionInput) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if in.UserID != nil {
		order, err = s.orders.FindByIDForUser(ctx, *in.UserID, in.OrderID)
	} else {
		order, err = s.orders.FindByID(ctx, in.OrderID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) redirects(in SessionInput) (string, string, error) {
	success := strings.TrimSpace(in.SuccessURL)
	if success == "" {
		success = s.successURL
	}
	cancel := strings.TrimSpace(in.CancelURL)
	if cancel == "" {
		cancel = s.cancelURL
	}
	details := map[string]string{}
	if !absoluteHTTPURL(success) {
		details["successUrl"] = "must be an absolute http(s) url"
	}
	if !absoluteHTTPURL(cancel) {
		details["cancelUrl"] = "must be an absolute http(s) url"
	}
	if len(details) > 0 {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "invalid redirect urls").WithDetails(details)
	}
	return success, cancel, nil
}

func (s *service) sessionParams(order *models.Order, successURL, cancelURL string) (*stripe.CheckoutSessionParams, error) {
	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Lines)+1)
	for _, line := range order.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(line.ProductName),
			Metadata: map[string]string{"product_id": line.ProductID.String()},
		}
		if line.Image != nil && *line.Image != "" {
			product.Images = stripe.StringSlice([]string{*line.Image})
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(line.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(minorUnits(line.UnitPrice)),
				ProductData: product,
			},
		})
	}
	switch order.Adjustments.Sign() {
	case 1:
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(minorUnits(order.Adjustments)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Shipping and taxes"),
				},
			},
		})
	case -1:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "negative order adjustments cannot be charged through checkout sessions")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(order.ID.String()),
		CustomerEmail:     stripe.String(order.ShippingAddress.Email),
		LineItems:         items,
	}
	params.AddMetadata(metadataOrderID, order.ID.String())
	params.AddMetadata("user_id", order.UserID.String())
	return params, nil
}

func (s *service) createSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.sessions.Create(callCtx, params)
	if err != nil {
		return nil, s.gatewayError(ctx, err, "create checkout session")
	}
	return created, nil
}

func (s *service) getSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	existing, err := s.sessions.Get(callCtx, id)
	if err != nil {
		return nil, s.gatewayError(ctx, err, "fetch checkout session")
	}
	return existing, nil
}

func (s *service) expireSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	expired, err := s.sessions.Expire(callCtx, id)
	if err != nil {
		return nil, s.gatewayError(ctx, err, "expire checkout session")
	}
	return expired, nil
}

func (s *service) gatewayError(ctx context.Context, err error, action string) error {
	if pkgstripe.IsClientError(err) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stripe rejected request: "+action)
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "action", action), "payment gateway unavailable: "+err.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable").
		WithReason(pkgerrors.ReasonGatewayUnavailable)
}

func orderNotPending(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order is not pending").
		WithReason(pkgerrors.ReasonOrderNotPending).
		WithDetails(map[string]any{"orderId": order.ID, "status": order.Status})
}

func orderLockKey(id uuid.UUID) string {
	return "order:" + id.String()
}

func absoluteHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// minorUnits converts a decimal amount into the currency's smallest unit.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
