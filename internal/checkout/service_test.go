package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/internal/orders"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/internal/users"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/dbtest"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

type stubCheckoutSessions struct {
	mu      sync.Mutex
	created int
	fail    error
	byID    map[string]*stripe.CheckoutSession
}

func (s *stubCheckoutSessions) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.created++
	id := fmt.Sprintf("cs_test_%d", s.created)
	session := &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/pay/" + id, Status: stripe.CheckoutSessionStatusOpen}
	s.byID[id] = session
	return session, nil
}

func (s *stubCheckoutSessions) Get(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id], nil
}

func (s *stubCheckoutSessions) Expire(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].Status = stripe.CheckoutSessionStatusExpired
	return s.byID[id], nil
}

type checkoutEnv struct {
	svc       Service
	carts     cart.Service
	payments  payments.Service
	addresses users.AddressBook
	orders    orders.Repository
	sessions  *stubCheckoutSessions
	store     *RedisSessionStore
	conn      *gorm.DB
	user      identity.Identity
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	locker := cart.NewKeyedMutex(time.Second)
	oracle := catalog.NewOracle(catalog.NewRepository(conn), time.Second, nil)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)

	carts, err := cart.NewService(cart.ServiceParams{
		Repo:    cartRepo,
		Pending: cart.NewPendingMergeStore(conn),
		Tx:      client,
		Oracle:  oracle,
		Locker:  locker,
		Outbox:  emitter,
	})
	require.NoError(t, err)

	assembler, err := orders.NewAssembler(orders.AssemblerParams{
		Tx: client, Carts: cartRepo, Orders: orderRepo, Inventory: oracle, Locker: locker, Outbox: emitter,
	})
	require.NoError(t, err)

	sessions := &stubCheckoutSessions{byID: map[string]*stripe.CheckoutSession{}}
	gateway, err := payments.NewService(payments.ServiceParams{
		Orders: orderRepo, Inventory: oracle, Tx: client, Sessions: sessions, Locker: locker, Outbox: emitter,
		SuccessURL: "https://shop.example/success", CancelURL: "https://shop.example/cancel",
	})
	require.NoError(t, err)

	addresses, err := users.NewAddressBook(users.NewRepository(conn), client)
	require.NoError(t, err)

	store, err := NewRedisSessionStore(newMemoryKV())
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Store: store, Carts: carts, Addresses: addresses, Assembler: assembler, Payments: gateway, Locker: locker,
	})
	require.NoError(t, err)

	user, err := identity.Authenticated(uuid.New())
	require.NoError(t, err)
	return &checkoutEnv{
		svc: svc, carts: carts, payments: gateway, addresses: addresses, orders: orderRepo,
		sessions: sessions, store: store, conn: conn, user: user,
	}
}

func validAddress() types.Address {
	return types.Address{
		FirstName: "Katherine", LastName: "Johnson", Email: "kj@example.com", Phone: "757-555-0199",
		Line1: "1 Langley Blvd", City: "Hampton", State: "VA", ZipCode: "23681", Country: "US",
	}
}

func (e *checkoutEnv) fillCart(t *testing.T) {
	t.Helper()
	p := dbtest.SeedProduct(t, e.conn, dbtest.ProductFixture{Name: "Globe", Price: "15.00", Stock: 4})
	_, err := e.carts.AddItem(context.Background(), e.user, p.ID, 1)
	require.NoError(t, err)
}

func assertReason(t *testing.T, err error, reason pkgerrors.Reason) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, reason, pkgerrors.ReasonOf(err), "error: %v", err)
}

func TestCheckoutScenarioFromCartToPaidOrder(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	a := dbtest.SeedProduct(t, env.conn, dbtest.ProductFixture{Name: "A", Price: "10.00", Stock: 10})
	b := dbtest.SeedProduct(t, env.conn, dbtest.ProductFixture{Name: "B", Price: "5.00", Stock: 2})

	_, err := env.carts.AddItem(ctx, env.user, a.ID, 1)
	require.NoError(t, err)
	view, err := env.carts.AddItem(ctx, env.user, b.ID, 2)
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, 3, view.ItemCount)

	_, err = env.carts.UpdateItem(ctx, env.user, b.ID, 3)
	assertReason(t, err, pkgerrors.ReasonOutOfStock)
	view, err = env.carts.Get(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, 3, view.ItemCount)

	state, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepShippingInfo, state.Session.Step)
	assert.Equal(t, view.Version, state.Session.SourceCartVersion)

	address := validAddress()
	state, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepPaymentPending, state.Session.Step)

	confirmation, err := env.svc.Confirm(ctx, env.user, ConfirmInput{})
	require.NoError(t, err)
	require.NotNil(t, confirmation.Payment)
	assert.NotEmpty(t, confirmation.Payment.RedirectURL)

	order, err := env.orders.FindByID(ctx, confirmation.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("20")))

	emptied, err := env.carts.Get(ctx, env.user)
	require.NoError(t, err)
	assert.True(t, emptied.IsEmpty())

	leftover, err := env.store.Load(ctx, env.user.UserID())
	require.NoError(t, err)
	assert.Nil(t, leftover)

	settled, err := env.payments.MarkPaid(ctx, confirmation.Payment.SessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, settled.Order.Status)
	assert.NotNil(t, settled.Order.PaidAt)

	_, err = env.payments.CreateSession(ctx, payments.SessionInput{OrderID: order.ID})
	assertReason(t, err, pkgerrors.ReasonOrderNotPending)
}

func TestConfirmAfterCartChangeRestartsAtShipping(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)

	_, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)
	address := validAddress()
	state, err := env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	require.NoError(t, err)
	pinned := state.Session.SourceCartVersion

	extra := dbtest.SeedProduct(t, env.conn, dbtest.ProductFixture{Name: "Map", Price: "3.00", Stock: 1})
	_, err = env.carts.AddItem(ctx, env.user, extra.ID, 1)
	require.NoError(t, err)

	_, err = env.svc.Confirm(ctx, env.user, ConfirmInput{})
	assertReason(t, err, pkgerrors.ReasonCartChanged)

	var count int64
	require.NoError(t, env.conn.Table("orders").Count(&count).Error)
	assert.Zero(t, count)

	current, err := env.svc.Get(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepShippingInfo, current.Session.Step)
	assert.Equal(t, pinned+1, current.Session.SourceCartVersion)
	require.NotNil(t, current.Session.ShippingAddress)
	assert.Equal(t, "Katherine", current.Session.ShippingAddress.FirstName)
	assert.False(t, current.CartChanged)
}

func TestCartChangeBeforeAddressIsNotRepinned(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)

	begun, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)
	pinned := begun.Session.SourceCartVersion

	extra := dbtest.SeedProduct(t, env.conn, dbtest.ProductFixture{Name: "Atlas", Price: "7.00", Stock: 3})
	_, err = env.carts.AddItem(ctx, env.user, extra.ID, 1)
	require.NoError(t, err)

	address := validAddress()
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	assertReason(t, err, pkgerrors.ReasonCartChanged)

	current, err := env.svc.Get(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepShippingInfo, current.Session.Step)
	assert.Equal(t, pinned+1, current.Session.SourceCartVersion)
	require.NotNil(t, current.Session.ShippingAddress)
	assert.Equal(t, "Katherine", current.Session.ShippingAddress.FirstName)

	_, err = env.svc.Confirm(ctx, env.user, ConfirmInput{})
	assertReason(t, err, pkgerrors.ReasonInvalidTransition)
	var count int64
	require.NoError(t, env.conn.Table("orders").Count(&count).Error)
	assert.Zero(t, count)

	// The user reviewed the refreshed cart, so the second submit goes through.
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	require.NoError(t, err)
	confirmation, err := env.svc.Confirm(ctx, env.user, ConfirmInput{})
	require.NoError(t, err)
	order, err := env.orders.FindByID(ctx, confirmation.OrderID)
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("22")))
}

func TestCheckoutRejectsOutOfOrderTransitions(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)

	_, err := env.svc.Confirm(ctx, env.user, ConfirmInput{})
	assertReason(t, err, pkgerrors.ReasonInvalidTransition)

	_, err = env.svc.Begin(ctx, env.user)
	require.NoError(t, err)

	_, err = env.svc.Confirm(ctx, env.user, ConfirmInput{})
	assertReason(t, err, pkgerrors.ReasonInvalidTransition)
	_, err = env.svc.Back(ctx, env.user)
	assertReason(t, err, pkgerrors.ReasonInvalidTransition)

	address := validAddress()
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	require.NoError(t, err)
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	assertReason(t, err, pkgerrors.ReasonInvalidTransition)
}

func TestBackKeepsAddress(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)
	_, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)
	address := validAddress()
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	require.NoError(t, err)

	state, err := env.svc.Back(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepShippingInfo, state.Session.Step)
	require.NotNil(t, state.Session.ShippingAddress)
	assert.Equal(t, address.Line1, state.Session.ShippingAddress.Line1)
}

func TestBeginRequiresCheckoutableCart(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()

	_, err := env.svc.Begin(ctx, env.user)
	assertReason(t, err, pkgerrors.ReasonEmptyCart)

	p := dbtest.SeedProduct(t, env.conn, dbtest.ProductFixture{Name: "Vase", Price: "8.00", Stock: 3})
	_, err = env.carts.AddItem(ctx, env.user, p.ID, 1)
	require.NoError(t, err)
	require.NoError(t, env.conn.Table("products").Where("id = ?", p.ID).Update("is_active", false).Error)

	_, err = env.svc.Begin(ctx, env.user)
	assertReason(t, err, pkgerrors.ReasonCartHasUnavailable)
}

func TestBeginRejectsAnonymousIdentity(t *testing.T) {
	env := newCheckoutEnv(t)
	guest, err := identity.Anonymous("guest-session-1")
	require.NoError(t, err)

	_, err = env.svc.Begin(context.Background(), guest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestSubmitAddressValidatesManualEntry(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)
	_, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)

	bad := validAddress()
	bad.Email = "not-an-email"
	bad.Phone = "555-01"
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &bad})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	state, err := env.svc.Get(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepShippingInfo, state.Session.Step)

	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestSavedAddressIsPreselectedAndCopied(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)

	saved, err := env.addresses.CreateSavedAddress(ctx, env.user.UserID(), users.CreateSavedAddressInput{Address: validAddress()})
	require.NoError(t, err)
	require.True(t, saved.IsDefault)

	state, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)
	require.NotNil(t, state.Session.SavedAddressID)
	assert.Equal(t, saved.ID, *state.Session.SavedAddressID)

	state, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{SavedAddressID: &saved.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepPaymentPending, state.Session.Step)
	assert.Equal(t, saved.Address.City, state.Session.ShippingAddress.City)

	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{SavedAddressID: &saved.ID, Address: &saved.Address})
	require.Error(t, err)
}

func TestConfirmPaymentFailureKeepsOrderForRetry(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)
	_, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)
	address := validAddress()
	_, err = env.svc.SubmitAddress(ctx, env.user, AddressInput{Address: &address})
	require.NoError(t, err)

	env.sessions.fail = context.DeadlineExceeded
	_, err = env.svc.Confirm(ctx, env.user, ConfirmInput{})
	assertReason(t, err, pkgerrors.ReasonGatewayUnavailable)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	orderID, ok := details["orderId"].(uuid.UUID)
	require.True(t, ok)

	state, err := env.svc.Get(ctx, env.user)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStepConfirmed, state.Session.Step)
	require.NotNil(t, state.Session.OrderID)
	assert.Equal(t, orderID, *state.Session.OrderID)

	env.sessions.fail = nil
	confirmation, err := env.svc.Confirm(ctx, env.user, ConfirmInput{})
	require.NoError(t, err)
	assert.Equal(t, orderID, confirmation.OrderID)

	var count int64
	require.NoError(t, env.conn.Table("orders").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAbandonDiscardsSession(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	env.fillCart(t)
	_, err := env.svc.Begin(ctx, env.user)
	require.NoError(t, err)

	require.NoError(t, env.svc.Abandon(ctx, env.user))
	require.NoError(t, env.svc.Abandon(ctx, env.user))

	_, err = env.svc.Get(ctx, env.user)
	assertReason(t, err, pkgerrors.ReasonInvalidTransition)
}
