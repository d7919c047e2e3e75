package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

type fakeMergeRetrier struct {
	limit  int
	report cart.RetryReport
	err    error
}

func (f *fakeMergeRetrier) RetryPendingMerges(ctx context.Context, limit int) (cart.RetryReport, error) {
	f.limit = limit
	return f.report, f.err
}

type fakeExpirer struct {
	cutoff time.Time
	limit  int
	err    error
}

func (f *fakeExpirer) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (payments.ExpiryReport, error) {
	f.cutoff = cutoff
	f.limit = limit
	return payments.ExpiryReport{Scanned: 2, Cancelled: 1, Skipped: 1}, f.err
}

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) PurgeExpired(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestMergeRetryJobUsesBatchSize(t *testing.T) {
	retrier := &fakeMergeRetrier{report: cart.RetryReport{Attempted: 2, Merged: 2}}
	job, err := NewMergeRetryJob(MergeRetryJobParams{Logger: testLogger(), Carts: retrier, BatchSize: 7})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "cart-merge-retry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if retrier.limit != 7 {
		t.Fatalf("expected limit 7, got %d", retrier.limit)
	}
}

func TestMergeRetryJobPropagatesError(t *testing.T) {
	job, err := NewMergeRetryJob(MergeRetryJobParams{Logger: testLogger(), Carts: &fakeMergeRetrier{err: errors.New("db down")}})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPendingOrderExpiryJobComputesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{}
	jobIface, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger:   testLogger(),
		Payments: expirer,
		TTL:      6 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*pendingOrderExpiryJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !expirer.cutoff.Equal(now.Add(-6 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", expirer.cutoff)
	}
	if expirer.limit != defaultExpiryBatch {
		t.Fatalf("expected default batch, got %d", expirer.limit)
	}
}

func TestCheckoutSessionPurgeJob(t *testing.T) {
	purger := &fakePurger{}
	job, err := NewCheckoutSessionPurgeJob(testLogger(), purger)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if purger.calls != 1 {
		t.Fatalf("expected one purge, got %d", purger.calls)
	}

	if _, err := NewCheckoutSessionPurgeJob(testLogger(), nil); err == nil {
		t.Fatal("expected error for missing store")
	}
}
