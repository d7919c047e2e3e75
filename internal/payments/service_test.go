package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/internal/orders"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/dbtest"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*stripe.CheckoutSession
	created  int
	keys     []string
	fail     error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*stripe.CheckoutSession{}}
}

func (f *fakeSessions) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.created++
	if params.IdempotencyKey != nil {
		f.keys = append(f.keys, *params.IdempotencyKey)
	}
	id := fmt.Sprintf("cs_test_%d", f.created)
	session := &stripe.CheckoutSession{
		ID:                id,
		URL:               "https://checkout.stripe.com/c/pay/" + id,
		Status:            stripe.CheckoutSessionStatusOpen,
		ClientReferenceID: stripe.StringValue(params.ClientReferenceID),
		Metadata:          params.Metadata,
	}
	f.sessions[id] = session
	return session, nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Msg: "no such checkout session"}
	}
	return session, nil
}

func (f *fakeSessions) Expire(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	session.Status = stripe.CheckoutSessionStatusExpired
	return session, nil
}

func (f *fakeSessions) setStatus(id string, status stripe.CheckoutSessionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].Status = status
}

type paymentsEnv struct {
	svc       Service
	sessions  *fakeSessions
	conn      *gorm.DB
	assembler *orders.Assembler
	carts     *cart.Repository
	orders    orders.Repository
}

func newPaymentsEnv(t *testing.T) *paymentsEnv {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	oracle := catalog.NewOracle(catalog.NewRepository(conn), time.Second, nil)
	carts := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	locker := cart.NewKeyedMutex(time.Second)

	assembler, err := orders.NewAssembler(orders.AssemblerParams{
		Tx:        client,
		Carts:     carts,
		Orders:    orderRepo,
		Inventory: oracle,
		Locker:    locker,
		Outbox:    emitter,
	})
	require.NoError(t, err)

	sessions := newFakeSessions()
	svc, err := NewService(ServiceParams{
		Orders:     orderRepo,
		Inventory:  oracle,
		Tx:         client,
		Sessions:   sessions,
		Locker:     locker,
		Outbox:     emitter,
		Timeout:    time.Second,
		SuccessURL: "https://shop.example/checkout/success",
		CancelURL:  "https://shop.example/checkout/cancel",
	})
	require.NoError(t, err)
	return &paymentsEnv{svc: svc, sessions: sessions, conn: conn, assembler: assembler, carts: carts, orders: orderRepo}
}

// placeOrder fills a fresh user's cart with qty units of a new product and
// assembles it into a pending order.
func (e *paymentsEnv) placeOrder(t *testing.T, stock, qty int) (*models.Order, models.Product) {
	t.Helper()
	ctx := context.Background()
	product := dbtest.SeedProduct(t, e.conn, dbtest.ProductFixture{Name: "Kettle", Price: "12.50", Stock: stock})
	user, err := identity.Authenticated(uuid.New())
	require.NoError(t, err)
	c, err := e.carts.GetOrCreate(ctx, user)
	require.NoError(t, err)
	require.NoError(t, e.carts.UpsertLine(ctx, c.ID, product.ID, qty))
	_, err = e.carts.BumpVersion(ctx, c.ID)
	require.NoError(t, err)

	order, err := e.assembler.CreateOrder(ctx, orders.AssembleInput{
		Identity: user,
		ShippingAddress: types.Address{
			FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Phone: "(212) 555-0142",
			Line1: "10 Navy Way", City: "Arlington", State: "VA", ZipCode: "22202", Country: "US",
		},
	})
	require.NoError(t, err)
	return order, product
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateSessionIsIdempotentPerOrder(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	order, _ := env.placeOrder(t, 3, 2)

	first, err := env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID, UserID: &order.UserID})
	require.NoError(t, err)
	second, err := env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID, UserID: &order.UserID})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.False(t, first.Reused)
	assert.True(t, second.Reused)
	assert.Equal(t, 1, env.sessions.created)
	assert.Equal(t, []string{"order:" + order.ID.String()}, env.sessions.keys)

	created := env.sessions.sessions[first.SessionID]
	assert.Equal(t, order.ID.String(), created.ClientReferenceID)
	assert.Equal(t, order.ID.String(), created.Metadata["order_id"])
}

func TestCreateSessionConcurrentCallsShareSession(t *testing.T) {
	env := newPaymentsEnv(t)
	order, _ := env.placeOrder(t, 1, 1)

	var wg sync.WaitGroup
	ids := make([]string, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := env.svc.CreateSession(context.Background(), SessionInput{OrderID: order.ID})
			errs[i] = err
			if session != nil {
				ids[i] = session.SessionID
			}
		}(i)
	}
	wg.Wait()
	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, env.sessions.created)
}

func TestCreateSessionReplacesExpiredSession(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	order, _ := env.placeOrder(t, 2, 1)

	first, err := env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID})
	require.NoError(t, err)
	env.sessions.setStatus(first.SessionID, stripe.CheckoutSessionStatusExpired)

	second, err := env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID})
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, "order:"+order.ID.String()+":after:"+first.SessionID, env.sessions.keys[1])

	stored, err := env.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.StripeSessionID)
	assert.Equal(t, second.SessionID, *stored.StripeSessionID)
}

func TestCreateSessionScopesToOwner(t *testing.T) {
	env := newPaymentsEnv(t)
	order, _ := env.placeOrder(t, 2, 1)
	stranger := uuid.New()

	_, err := env.svc.CreateSession(context.Background(), SessionInput{OrderID: order.ID, UserID: &stranger})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCreateSessionValidatesRedirects(t *testing.T) {
	env := newPaymentsEnv(t)
	order, _ := env.placeOrder(t, 2, 1)

	_, err := env.svc.CreateSession(context.Background(), SessionInput{OrderID: order.ID, SuccessURL: "/relative", CancelURL: "ftp://shop.example"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, 0, env.sessions.created)
}

func TestCreateSessionGatewayFailureIsRetryable(t *testing.T) {
	env := newPaymentsEnv(t)
	order, _ := env.placeOrder(t, 2, 1)
	env.sessions.fail = context.DeadlineExceeded

	_, err := env.svc.CreateSession(context.Background(), SessionInput{OrderID: order.ID})
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonGatewayUnavailable), "got %v", err)
	assert.True(t, pkgerrors.Retryable(err))

	stored, err := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.StripeSessionID)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestCreateSessionStripeRejectionIsNotRetryable(t *testing.T) {
	env := newPaymentsEnv(t)
	order, _ := env.placeOrder(t, 2, 1)
	env.sessions.fail = &stripe.Error{HTTPStatusCode: 400, Msg: "bad currency"}

	_, err := env.svc.CreateSession(context.Background(), SessionInput{OrderID: order.ID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMarkPaidSettlesOnceAndBlocksNewSessions(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	order, product := env.placeOrder(t, 2, 2)

	session, err := env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID})
	require.NoError(t, err)

	settled, err := env.svc.MarkPaid(ctx, session.SessionID)
	require.NoError(t, err)
	assert.True(t, settled.Applied)
	assert.Equal(t, enums.OrderStatusPaid, settled.Order.Status)
	require.NotNil(t, settled.Order.PaidAt)

	inv := dbtest.Inventory(t, env.conn, product.ID)
	assert.Equal(t, 0, inv.AvailableQty)
	assert.Equal(t, 0, inv.ReservedQty)

	again, err := env.svc.MarkPaid(ctx, session.SessionID)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, int64(1), countEvents(t, env.conn, enums.EventOrderPaid))

	_, err = env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID})
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotPending), "got %v", err)

	// A late expiry cannot leave paid.
	late, err := env.svc.MarkCancelled(ctx, session.SessionID)
	require.NoError(t, err)
	assert.False(t, late.Applied)
	assert.Equal(t, enums.OrderStatusPaid, late.Order.Status)
}

func TestMarkCancelledReleasesStock(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	order, product := env.placeOrder(t, 5, 3)

	session, err := env.svc.CreateSession(ctx, SessionInput{OrderID: order.ID})
	require.NoError(t, err)

	settled, err := env.svc.Settle(ctx, session.SessionID, enums.PaymentOutcomeFailed)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, settled.Order.Status)
	assert.NotNil(t, settled.Order.CancelledAt)

	inv := dbtest.Inventory(t, env.conn, product.ID)
	assert.Equal(t, 5, inv.AvailableQty)
	assert.Equal(t, 0, inv.ReservedQty)
	assert.Equal(t, int64(1), countEvents(t, env.conn, enums.EventOrderCancelled))
}

func TestSettleUnknownSession(t *testing.T) {
	env := newPaymentsEnv(t)
	_, err := env.svc.MarkPaid(context.Background(), "cs_missing")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestExpireStaleSkipsOpenSessions(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	withOpen, _ := env.placeOrder(t, 2, 1)
	abandoned, product := env.placeOrder(t, 4, 4)
	withExpired, _ := env.placeOrder(t, 1, 1)

	_, err := env.svc.CreateSession(ctx, SessionInput{OrderID: withOpen.ID})
	require.NoError(t, err)
	expired, err := env.svc.CreateSession(ctx, SessionInput{OrderID: withExpired.ID})
	require.NoError(t, err)
	env.sessions.setStatus(expired.SessionID, stripe.CheckoutSessionStatusExpired)

	report, err := env.svc.ExpireStale(ctx, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{Scanned: 3, Cancelled: 2, Skipped: 1}, report)

	stillPending, err := env.orders.FindByID(ctx, withOpen.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stillPending.Status)

	cancelled, err := env.orders.FindByID(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 4, dbtest.Inventory(t, env.conn, product.ID).AvailableQty)
}
