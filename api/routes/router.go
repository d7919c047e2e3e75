package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stripe/stripe-go/v84"

	"github.com/abdulbasit0-UI/storefront-backend/api/controllers"
	cartcontrollers "github.com/abdulbasit0-UI/storefront-backend/api/controllers/cart"
	checkoutcontrollers "github.com/abdulbasit0-UI/storefront-backend/api/controllers/checkout"
	ordercontrollers "github.com/abdulbasit0-UI/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/abdulbasit0-UI/storefront-backend/api/controllers/webhooks"
	"github.com/abdulbasit0-UI/storefront-backend/api/middleware"
	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	checkoutsvc "github.com/abdulbasit0-UI/storefront-backend/internal/checkout"
	"github.com/abdulbasit0-UI/storefront-backend/internal/orders"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/internal/users"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
)

// KVStore is the Redis surface used by request-scoped middleware.
type KVStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

type stripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingSecretProvider interface {
	SigningSecret() string
}

type paymentSessions interface {
	CreateSession(ctx context.Context, in payments.SessionInput) (*payments.Session, error)
}

// Params lists what the router mounts. A nil Store disables idempotency
// replay and rate limiting.
type Params struct {
	Config    *config.Config
	Logger    *logger.Logger
	Ready     map[string]controllers.Pinger
	Store     KVStore
	Carts     cart.Service
	Checkout  checkoutsvc.Service
	Orders    orders.Service
	Payments  paymentSessions
	Addresses users.AddressBook

	// Metrics serves /metrics; HTTPMetrics records per-route latency.
	// Either may be nil.
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTP

	StripeWebhook stripeWebhookService
	StripeClient  signingSecretProvider
	WebhookGuard  stripeWebhookGuard
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	idempotent := middleware.Idempotency(p.Store, middleware.DefaultIdempotencyTTL, logg)
	cartLimit := middleware.RateLimit(middleware.NewRateLimitPolicy(
		"cart",
		cfg.RateLimit.CartWindow,
		cfg.RateLimit.CartIPLimit,
		cfg.RateLimit.CartIdentityLimit,
	), p.Store, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeClient, p.WebhookGuard, logg))
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.CartIdentity(cfg.JWT, logg))
		r.Get("/", cartcontrollers.CartFetch(p.Carts, logg))
		r.Get("/count", cartcontrollers.CartCount(p.Carts, logg))

		r.Group(func(r chi.Router) {
			r.Use(cartLimit)
			r.Post("/add", cartcontrollers.CartAdd(p.Carts, logg))
			r.Put("/update", cartcontrollers.CartUpdate(p.Carts, logg))
			r.Delete("/remove/{productId}", cartcontrollers.CartRemove(p.Carts, logg))
			r.Delete("/clear", cartcontrollers.CartClear(p.Carts, logg))
			r.Post("/merge", cartcontrollers.CartMerge(p.Carts, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutcontrollers.Begin(p.Checkout, logg))
			r.Get("/", checkoutcontrollers.Get(p.Checkout, logg))
			r.Delete("/", checkoutcontrollers.Abandon(p.Checkout, logg))
			r.Post("/address", checkoutcontrollers.SubmitAddress(p.Checkout, logg))
			r.Post("/back", checkoutcontrollers.Back(p.Checkout, logg))
			r.With(idempotent).Post("/confirm", checkoutcontrollers.Confirm(p.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.With(idempotent).Post("/{orderId}/checkout", ordercontrollers.PaymentSession(p.Payments, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(p.Addresses, logg))
			r.Post("/", controllers.AddressCreate(p.Addresses, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(p.Addresses, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.AdminDetail(p.Orders, logg))
		})
	})

	return r
}
