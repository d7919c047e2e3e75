package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abdulbasit0-UI/storefront-backend/internal/bootstrap"
	"github.com/abdulbasit0-UI/storefront-backend/internal/cron"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
)

func main() {
	ctx := context.Background()
	rt := bootstrap.NewRuntime("cron-worker")
	rt.Must(ctx, "startup", rt.Open(ctx, bootstrap.NeedDB|bootstrap.NeedRedis))
	cfg := rt.Config

	services, err := bootstrap.New(ctx, bootstrap.Params{
		Config:   cfg,
		Logger:   rt.Logger,
		DB:       rt.DB,
		Redis:    rt.Redis,
		Registry: prometheus.DefaultRegisterer,
	})
	rt.Must(ctx, "services", err)

	jobs, err := registerJobs(rt, services)
	rt.Must(ctx, "cron jobs", err)

	lock, err := cron.NewRedisLock(rt.Redis, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	rt.Must(ctx, "cron lock", err)

	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCron(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	rt.Must(ctx, "cron service", err)

	runCtx, stop := rt.SignalContext(map[string]any{"jobs": len(jobs.Jobs())})
	defer stop()
	rt.ServeWorkerMetrics(runCtx)
	rt.Logger.Info(runCtx, "starting cron worker")

	if err := scheduler.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Must(runCtx, "cron loop", err)
	}
	rt.Shutdown(runCtx)
}

// registerJobs returns the jobs in run order.
func registerJobs(rt *bootstrap.Runtime, services *bootstrap.Services) (*cron.Registry, error) {
	cfg := rt.Config
	mergeRetry, err := cron.NewMergeRetryJob(cron.MergeRetryJobParams{
		Logger:    rt.Logger,
		Carts:     services.Carts,
		BatchSize: cfg.Merge.RetryBatchSize,
	})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewPendingOrderExpiryJob(cron.PendingOrderExpiryJobParams{
		Logger:   rt.Logger,
		Payments: services.Payments,
		TTL:      cfg.Checkout.PendingOrderTTL,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       rt.Logger,
		Repository:   outbox.NewRepository(rt.DB.DB()),
		DLQ:          outbox.NewDLQRepository(rt.DB.DB()),
		Retention:    cfg.Outbox.Retention,
		DLQRetention: cfg.Outbox.DLQRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(mergeRetry, expiry, retention)
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker-" + env
}
