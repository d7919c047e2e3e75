package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/internal/orders"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/internal/users"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/validation"
)

const defaultSessionTTL = 30 * time.Minute

type cartReader interface {
	Get(ctx context.Context, id identity.Identity) (*cart.View, error)
}

type orderAssembler interface {
	CreateOrder(ctx context.Context, in orders.AssembleInput) (*models.Order, error)
}

type paymentGateway interface {
	CreateSession(ctx context.Context, in payments.SessionInput) (*payments.Session, error)
}

type recorder interface {
	ObserveCheckoutTransition(step, outcome string)
}

// Service drives a user's checkout from shipping details to payment hand-off.
type Service interface {
	Begin(ctx context.Context, id identity.Identity) (*State, error)
	Get(ctx context.Context, id identity.Identity) (*State, error)
	SubmitAddress(ctx context.Context, id identity.Identity, in AddressInput) (*State, error)
	Back(ctx context.Context, id identity.Identity) (*State, error)
	Confirm(ctx context.Context, id identity.Identity, in ConfirmInput) (*Confirmation, error)
	Abandon(ctx context.Context, id identity.Identity) error
}

type ServiceParams struct {
	Store      SessionStore
	Carts      cartReader
	Addresses  users.AddressBook
	Assembler  orderAssembler
	Payments   paymentGateway
	Locker     cart.Locker
	Metrics    recorder
	Logger     *logger.Logger
	SessionTTL time.Duration
}

type service struct {
	store     SessionStore
	carts     cartReader
	addresses users.AddressBook
	assembler orderAssembler
	payments  paymentGateway
	locker    cart.Locker
	metrics   recorder
	logg      *logger.Logger
	ttl       time.Duration
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Store == nil:
		return nil, fmt.Errorf("checkout session store required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address book required")
	case params.Assembler == nil:
		return nil, fmt.Errorf("order assembler required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment gateway required")
	}
	locker := params.Locker
	if locker == nil {
		locker = cart.NewKeyedMutex(0)
	}
	rec := params.Metrics
	if rec == nil {
		rec = (*metrics.Storefront)(nil)
	}
	ttl := params.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &service{
		store:     params.Store,
		carts:     params.Carts,
		addresses: params.Addresses,
		assembler: params.Assembler,
		payments:  params.Payments,
		locker:    locker,
		metrics:   rec,
		logg:      params.Logger,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Begin opens a fresh session at the shipping step, pinned to the current
// cart version. An address entered earlier is kept for editing; otherwise the
// user's default saved address is preselected.
func (s *service) Begin(ctx context.Context, id identity.Identity) (*State, error) {
	const step = "begin"
	if err := identity.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	view, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, s.fail(step, err)
	}
	if err := checkoutable(view); err != nil {
		return nil, s.fail(step, err)
	}

	previous, err := s.load(ctx, id.UserID())
	if err != nil {
		return nil, s.fail(step, err)
	}

	now := s.now()
	session := &Session{
		UserID:            id.UserID(),
		Step:              enums.CheckoutStepShippingInfo,
		SourceCartVersion: view.Version,
		StartedAt:         now,
		UpdatedAt:         now,
	}
	if previous != nil && previous.ShippingAddress != nil {
		session.ShippingAddress = previous.ShippingAddress
		session.SavedAddressID = previous.SavedAddressID
	} else if err := s.preselectDefault(ctx, session); err != nil {
		return nil, s.fail(step, err)
	}

	if err := s.save(ctx, session); err != nil {
		return nil, s.fail(step, err)
	}
	s.ok(ctx, step, session)
	return &State{Session: session, Cart: view}, nil
}

// Get returns the live session with the current cart. It does not extend the
// session TTL.
func (s *service) Get(ctx context.Context, id identity.Identity) (*State, error) {
	if err := identity.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	session, err := s.require(ctx, id.UserID())
	if err != nil {
		return nil, err
	}
	view, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &State{
		Session:     session,
		Cart:        view,
		CartChanged: session.Step != enums.CheckoutStepConfirmed && view.Version != session.SourceCartVersion,
	}, nil
}

// SubmitAddress records the shipping address and advances to PaymentPending.
// A saved address is copied by value. A cart that moved past the pinned
// version keeps the address, re-pins the session and reports CartChanged.
func (s *service) SubmitAddress(ctx context.Context, id identity.Identity, in AddressInput) (*State, error) {
	const step = "address"
	if err := identity.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.require(ctx, id.UserID())
	if err != nil {
		return nil, s.fail(step, err)
	}
	if session.Step != enums.CheckoutStepShippingInfo {
		return nil, s.fail(step, invalidTransition(session.Step, enums.CheckoutStepPaymentPending))
	}

	address, savedID, err := s.resolveAddress(ctx, id.UserID(), in)
	if err != nil {
		return nil, s.fail(step, err)
	}

	view, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, s.fail(step, err)
	}
	if err := checkoutable(view); err != nil {
		return nil, s.fail(step, err)
	}

	session.ShippingAddress = &address
	session.SavedAddressID = savedID
	if view.Version != session.SourceCartVersion {
		return nil, s.fail(step, s.restart(ctx, session, view.Version))
	}
	session.Step = enums.CheckoutStepPaymentPending
	session.UpdatedAt = s.now()
	if err := s.save(ctx, session); err != nil {
		return nil, s.fail(step, err)
	}
	s.ok(ctx, step, session)
	return &State{Session: session, Cart: view}, nil
}

// Back returns from PaymentPending to ShippingInfo keeping the address.
func (s *service) Back(ctx context.Context, id identity.Identity) (*State, error) {
	const step = "back"
	if err := identity.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.require(ctx, id.UserID())
	if err != nil {
		return nil, s.fail(step, err)
	}
	if session.Step != enums.CheckoutStepPaymentPending {
		return nil, s.fail(step, invalidTransition(session.Step, enums.CheckoutStepShippingInfo))
	}
	session.Step = enums.CheckoutStepShippingInfo
	session.UpdatedAt = s.now()
	if err := s.save(ctx, session); err != nil {
		return nil, s.fail(step, err)
	}
	view, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.ok(ctx, step, session)
	return &State{Session: session, Cart: view, CartChanged: view.Version != session.SourceCartVersion}, nil
}

// Confirm assembles the order and opens a payment session for it. A cart that
// moved past the pinned version sends the session back to ShippingInfo. When
// the order exists but the payment page could not be created, the session is
// kept at Confirmed and a later Confirm only retries the payment hand-off.
func (s *service) Confirm(ctx context.Context, id identity.Identity, in ConfirmInput) (*Confirmation, error) {
	const step = "confirm"
	if err := identity.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.require(ctx, id.UserID())
	if err != nil {
		return nil, s.fail(step, err)
	}

	switch session.Step {
	case enums.CheckoutStepConfirmed:
		if session.OrderID == nil {
			return nil, s.fail(step, invalidTransition(session.Step, enums.CheckoutStepConfirmed))
		}
		return s.handOff(ctx, session, *session.OrderID, in)
	case enums.CheckoutStepPaymentPending:
	default:
		return nil, s.fail(step, invalidTransition(session.Step, enums.CheckoutStepConfirmed))
	}
	if session.ShippingAddress == nil {
		return nil, s.fail(step, invalidTransition(session.Step, enums.CheckoutStepConfirmed))
	}

	view, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, s.fail(step, err)
	}
	if view.Version != session.SourceCartVersion {
		return nil, s.fail(step, s.restart(ctx, session, view.Version))
	}

	expected := session.SourceCartVersion
	order, err := s.assembler.CreateOrder(ctx, orders.AssembleInput{
		Identity:        id,
		ShippingAddress: *session.ShippingAddress,
		ExpectedVersion: &expected,
	})
	if err != nil {
		if pkgerrors.IsReason(err, pkgerrors.ReasonCartChanged) {
			current := expected
			if latest, getErr := s.carts.Get(ctx, id); getErr == nil {
				current = latest.Version
			}
			return nil, s.fail(step, s.restart(ctx, session, current))
		}
		return nil, s.fail(step, err)
	}

	orderID := order.ID
	session.Step = enums.CheckoutStepConfirmed
	session.OrderID = &orderID
	session.UpdatedAt = s.now()
	if err := s.save(ctx, session); err != nil {
		// The order is committed; surface it so payment can be retried
		// through the order itself.
		return nil, s.fail(step, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout session unavailable").
			WithDetails(map[string]any{"orderId": orderID}))
	}
	return s.handOff(ctx, session, orderID, in)
}

// Abandon discards the session. A pending order it produced is left to the
// expiry job.
func (s *service) Abandon(ctx context.Context, id identity.Identity) error {
	if err := identity.RequireAuthenticated(id); err != nil {
		return err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, id.UserID()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete checkout session")
	}
	s.metrics.ObserveCheckoutTransition("abandon", metrics.OutcomeOK)
	return nil
}

func (s *service) handOff(ctx context.Context, session *Session, orderID uuid.UUID, in ConfirmInput) (*Confirmation, error) {
	const step = "confirm"
	userID := session.UserID
	payment, err := s.payments.CreateSession(ctx, payments.SessionInput{
		OrderID:    orderID,
		UserID:     &userID,
		SuccessURL: in.SuccessURL,
		CancelURL:  in.CancelURL,
	})
	if err != nil {
		return nil, s.fail(step, paymentHandOffFailed(err, orderID))
	}
	if err := s.store.Delete(ctx, userID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "failed to drop confirmed checkout session")
	}
	s.ok(ctx, step, session)
	return &Confirmation{OrderID: orderID, Payment: payment}, nil
}

// restart moves the session back to ShippingInfo against the current cart and
// returns the CartChanged conflict for the caller.
func (s *service) restart(ctx context.Context, session *Session, currentVersion int64) error {
	sourceVersion := session.SourceCartVersion
	session.Step = enums.CheckoutStepShippingInfo
	session.SourceCartVersion = currentVersion
	session.UpdatedAt = s.now()
	if err := s.save(ctx, session); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "cart changed since checkout started").
		WithReason(pkgerrors.ReasonCartChanged).
		WithDetails(map[string]any{
			"sourceVersion":  sourceVersion,
			"currentVersion": currentVersion,
			"step":           enums.CheckoutStepShippingInfo,
		})
}

func (s *service) resolveAddress(ctx context.Context, userID uuid.UUID, in AddressInput) (types.Address, *uuid.UUID, error) {
	switch {
	case in.SavedAddressID != nil && in.Address != nil:
		return types.Address{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "provide either savedAddressId or address, not both")
	case in.SavedAddressID != nil:
		saved, err := s.addresses.GetSavedAddress(ctx, userID, *in.SavedAddressID)
		if err != nil {
			return types.Address{}, nil, err
		}
		address, err := validation.Address(saved)
		if err != nil {
			return types.Address{}, nil, err
		}
		savedID := *in.SavedAddressID
		return address, &savedID, nil
	case in.Address != nil:
		address, err := validation.Address(*in.Address)
		if err != nil {
			return types.Address{}, nil, err
		}
		return address, nil, nil
	default:
		return types.Address{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
}

func (s *service) preselectDefault(ctx context.Context, session *Session) error {
	saved, err := s.addresses.ListSavedAddresses(ctx, session.UserID)
	if err != nil {
		return err
	}
	for _, candidate := range saved {
		if !candidate.IsDefault {
			continue
		}
		address := candidate.Address
		savedID := candidate.ID
		session.ShippingAddress = &address
		session.SavedAddressID = &savedID
		return nil
	}
	return nil
}

func (s *service) require(ctx context.Context, userID uuid.UUID) (*Session, error) {
	session, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout has not been started").
			WithReason(pkgerrors.ReasonInvalidTransition).
			WithDetails(map[string]any{"step": enums.CheckoutStepShippingInfo})
	}
	return session, nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*Session, error) {
	session, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	return session, nil
}

func (s *service) save(ctx context.Context, session *Session) error {
	if err := s.store.Save(ctx, session, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return nil
}

func (s *service) lock(ctx context.Context, id identity.Identity) (func(), error) {
	return s.locker.Lock(ctx, "checkout:"+id.Key())
}

func (s *service) fail(step string, err error) error {
	outcome := metrics.OutcomeError
	if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
		outcome = metrics.OutcomeRejected
	}
	s.metrics.ObserveCheckoutTransition(step, outcome)
	return err
}

func (s *service) ok(ctx context.Context, step string, session *Session) {
	s.metrics.ObserveCheckoutTransition(step, metrics.OutcomeOK)
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"checkout_step":       string(session.Step),
		"source_cart_version": session.SourceCartVersion,
	}
	if session.OrderID != nil {
		fields["order_id"] = session.OrderID.String()
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithUserID(ctx, session.UserID.String()), fields), "checkout."+step)
}

// checkoutable blocks checkout on an empty cart or one with unavailable lines.
func checkoutable(view *cart.View) error {
	if view.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty").WithReason(pkgerrors.ReasonEmptyCart)
	}
	if !view.HasUnavailable {
		return nil
	}
	unavailable := make([]uuid.UUID, 0)
	for _, line := range view.Lines {
		if !line.Available {
			unavailable = append(unavailable, line.ProductID)
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "cart has unavailable items").
		WithReason(pkgerrors.ReasonCartHasUnavailable).
		WithDetails(map[string]any{"productIds": unavailable})
}

func invalidTransition(from, to enums.CheckoutStep) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move checkout from %s to %s", from, to)).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{"step": from, "requested": to})
}

// paymentHandOffFailed keeps the payment failure retryable and tells the
// caller which order to retry against.
func paymentHandOffFailed(err error, orderID uuid.UUID) error {
	reason := pkgerrors.ReasonOf(err)
	if reason == "" {
		reason = pkgerrors.ReasonGatewayUnavailable
	}
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
		code = pkgerrors.CodeConflict
	}
	return pkgerrors.Wrap(code, err, "order created but payment session failed").
		WithReason(reason).
		WithDetails(map[string]any{"orderId": orderID})
}
