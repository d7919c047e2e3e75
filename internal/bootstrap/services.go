// Package bootstrap assembles the storefront services shared by the API and
// the cron worker.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/catalog"
	"github.com/abdulbasit0-UI/storefront-backend/internal/checkout"
	"github.com/abdulbasit0-UI/storefront-backend/internal/orders"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/internal/users"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
	pkgstripe "github.com/abdulbasit0-UI/storefront-backend/pkg/stripe"
)

// Params carries the long lived clients every service hangs off.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Registry prometheus.Registerer
	// WithCheckout opens the checkout session store. Only the API owns it.
	WithCheckout bool
}

// Services is the wired domain layer.
type Services struct {
	Metrics   *metrics.Storefront
	Oracle    *catalog.Oracle
	Locker    cart.Locker
	Carts     cart.Service
	Orders    orders.Service
	Assembler *orders.Assembler
	Addresses users.AddressBook
	Payments  payments.Service
	Checkout  checkout.Service
	Sessions  checkout.SessionStore
	Stripe    *pkgstripe.Client

	closers []io.Closer
}

// New builds the services in dependency order.
func New(ctx context.Context, p Params) (*Services, error) {
	cfg := p.Config
	conn := p.DB.DB()
	out := &Services{Metrics: metrics.NewStorefront(p.Registry)}

	locker, err := newLocker(cfg.Cart, p.Redis)
	if err != nil {
		return nil, err
	}
	out.Locker = locker

	out.Oracle = catalog.NewOracle(catalog.NewRepository(conn), cfg.Cart.StockOracleTimeout, p.Logger)
	emitter := outbox.NewService(outbox.NewRepository(conn), p.Logger)
	cartRepo := cart.NewRepository(conn)

	out.Carts, err = cart.NewService(cart.ServiceParams{
		Repo:    cartRepo,
		Pending: cart.NewPendingMergeStore(conn),
		Tx:      p.DB,
		Oracle:  out.Oracle,
		Locker:  locker,
		Outbox:  emitter,
		Metrics: out.Metrics,
		Logger:  p.Logger,
		Merge: cart.MergePolicy{
			MaxAttempts:    cfg.Merge.MaxAttempts,
			InitialBackoff: cfg.Merge.InitialBackoff,
			MaxBackoff:     cfg.Merge.MaxBackoff,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	orderRepo := orders.NewRepository(conn)
	out.Orders, err = orders.NewService(orderRepo)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	out.Assembler, err = orders.NewAssembler(orders.AssemblerParams{
		Tx:        p.DB,
		Carts:     cartRepo,
		Orders:    orderRepo,
		Inventory: out.Oracle,
		Locker:    locker,
		Outbox:    emitter,
		Pricer:    orders.ZeroPricer{},
		Currency:  cfg.Stripe.Currency,
		Logger:    p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("order assembler: %w", err)
	}

	out.Addresses, err = users.NewAddressBook(users.NewRepository(conn), p.DB)
	if err != nil {
		return nil, fmt.Errorf("address book: %w", err)
	}

	out.Stripe, err = pkgstripe.NewClient(ctx, cfg.Stripe, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	sessions, err := pkgstripe.NewCheckoutSessions(out.Stripe)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout sessions: %w", err)
	}
	successURL, cancelURL := out.Stripe.RedirectDefaults()

	out.Payments, err = payments.NewService(payments.ServiceParams{
		Orders:     orderRepo,
		Inventory:  out.Oracle,
		Tx:         p.DB,
		Sessions:   sessions,
		Locker:     locker,
		Outbox:     emitter,
		Metrics:    out.Metrics,
		Logger:     p.Logger,
		Currency:   out.Stripe.Currency(),
		Timeout:    out.Stripe.Timeout(),
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	if !p.WithCheckout {
		return out, nil
	}

	store, closer, err := openSessionStore(cfg.Checkout, p.Redis)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		out.closers = append(out.closers, closer)
	}
	out.Sessions = store

	out.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Store:      store,
		Carts:      out.Carts,
		Addresses:  out.Addresses,
		Assembler:  out.Assembler,
		Payments:   out.Payments,
		Locker:     locker,
		Metrics:    out.Metrics,
		Logger:     p.Logger,
		SessionTTL: cfg.Checkout.SessionTTL,
	})
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("checkout service: %w", err)
	}
	return out, nil
}

// Close releases stores opened by New.
func (s *Services) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	s.closers = nil
	return err
}

func newLocker(cfg config.CartConfig, client *redis.Client) (cart.Locker, error) {
	if cfg.Lock != config.CartLockRedis {
		return cart.NewKeyedMutex(cfg.LockWait), nil
	}
	if client == nil {
		return nil, fmt.Errorf("redis client required for %s=%s", config.EnvCartLock, config.CartLockRedis)
	}
	return cart.NewRedisLocker(client, "cart", cfg.LockTTL, cfg.LockWait)
}

func openSessionStore(cfg config.CheckoutConfig, client *redis.Client) (checkout.SessionStore, io.Closer, error) {
	if cfg.Store == config.CheckoutStorePebble {
		store, err := checkout.OpenPebbleSessionStore(cfg.PebbleDir, vfs.Default)
		if err != nil {
			return nil, nil, fmt.Errorf("open checkout pebble store: %w", err)
		}
		return store, store, nil
	}
	if client == nil {
		return nil, nil, fmt.Errorf("redis client required for checkout sessions")
	}
	store, err := checkout.NewRedisSessionStore(client)
	if err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}
