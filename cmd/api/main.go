package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/abdulbasit0-UI/storefront-backend/api"
	"github.com/abdulbasit0-UI/storefront-backend/api/controllers"
	"github.com/abdulbasit0-UI/storefront-backend/api/routes"
	"github.com/abdulbasit0-UI/storefront-backend/internal/bootstrap"
	"github.com/abdulbasit0-UI/storefront-backend/internal/cron"
	stripewebhook "github.com/abdulbasit0-UI/storefront-backend/internal/webhooks/stripe"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/idempotency"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

func main() {
	ctx := context.Background()
	rt := bootstrap.NewRuntime("api")
	rt.Must(ctx, "startup", rt.Open(ctx, bootstrap.NeedDB|bootstrap.NeedRedis))
	cfg, logg := rt.Config, rt.Logger

	services, err := bootstrap.New(ctx, bootstrap.Params{
		Config:       cfg,
		Logger:       logg,
		DB:           rt.DB,
		Redis:        rt.Redis,
		Registry:     prometheus.DefaultRegisterer,
		WithCheckout: true,
	})
	rt.Must(ctx, "services", err)
	rt.OnClose("checkout sessions", services.Close)

	webhooks, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: services.Payments,
		Metrics:  services.Metrics,
		Logger:   logg,
	})
	rt.Must(ctx, "stripe webhook service", err)
	webhookGuard, err := idempotency.NewGuard(rt.Redis, stripewebhook.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL)
	rt.Must(ctx, "stripe webhook guard", err)

	params := routes.Params{
		Config: cfg,
		Logger: logg,
		Ready: map[string]controllers.Pinger{
			"db":    rt.DB,
			"redis": rt.Redis,
		},
		Store:         rt.Redis,
		Carts:         services.Carts,
		Checkout:      services.Checkout,
		Orders:        services.Orders,
		Payments:      services.Payments,
		Addresses:     services.Addresses,
		StripeWebhook: webhooks,
		StripeClient:  services.Stripe,
		WebhookGuard:  webhookGuard,
	}
	if cfg.Metrics.Enabled {
		params.Metrics = promhttp.Handler()
		params.HTTPMetrics = metrics.NewHTTP(prometheus.DefaultRegisterer)
	}
	server := api.NewServer(cfg, routes.NewRouter(params))

	runCtx, stop := rt.SignalContext(map[string]any{"addr": server.Addr})
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logg.Info(gctx, "starting api server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if purger, ok := services.Sessions.(sessionPurger); ok && cfg.Checkout.Store == config.CheckoutStorePebble {
		g.Go(func() error { return runSessionPurge(gctx, rt, purger) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		rt.Must(runCtx, "api server", err)
	}
	rt.Shutdown(runCtx)
}

// runSessionPurge sweeps the embedded checkout store. Only this process opens
// the store, so a process local lock is enough.
func runSessionPurge(ctx context.Context, rt *bootstrap.Runtime, purger sessionPurger) error {
	job, err := cron.NewCheckoutSessionPurgeJob(rt.Logger, purger)
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(job)
	if err != nil {
		return err
	}
	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: jobs,
		Lock:     &cron.LocalLock{},
		Metrics:  metrics.NewCron(prometheus.DefaultRegisterer),
		Interval: rt.Config.Cron.Interval,
	})
	if err != nil {
		return err
	}
	return sweeper.Run(ctx)
}
