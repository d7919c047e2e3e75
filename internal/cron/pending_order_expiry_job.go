package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 24 * time.Hour
	defaultExpiryBatch     = 100
)

type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (payments.ExpiryReport, error)
}

type PendingOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Payments  staleOrderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewPendingOrderExpiryJob cancels orders left pending past their TTL so the
// stock they hold returns to inventory.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &pendingOrderExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		ttl:      ttl,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg     *logger.Logger
	payments staleOrderExpirer
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return "pending-order-expiry" }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	report, err := j.payments.ExpireStale(ctx, cutoff, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"scanned":   report.Scanned,
		"cancelled": report.Cancelled,
		"skipped":   report.Skipped,
	})
	if err != nil {
		j.logg.Error(logCtx, "pending order expiry incomplete", err)
		return fmt.Errorf("expire pending orders: %w", err)
	}
	if report.Scanned > 0 {
		j.logg.Info(logCtx, "pending order expiry complete")
	}
	return nil
}
