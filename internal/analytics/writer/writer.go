// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/types"
	pkgbigquery "github.com/abdulbasit0-UI/storefront-backend/pkg/bigquery"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type Config struct {
	OrdersTable string
	RetryPolicy RetryPolicy
}

// RetryPolicy bounds in-process retries of a transient insert failure. Past
// it the error goes back to the worker, which nacks the delivery.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(defaultMaximumBackoff, p.InitialBackoff)
	}
	return p
}

type inserter interface {
	Put(ctx context.Context, table string, rows []cbigquery.ValueSaver) error
}

// BigQueryWriter writes each order fact as soon as it is handled. Nothing is
// buffered, so an acked delivery is always a stored row.
type BigQueryWriter struct {
	client      inserter
	ordersTable string
	retry       RetryPolicy
	sleep       func(context.Context, time.Duration) error
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrdersTable)
	if table == "" {
		return nil, errors.New("orders table is required")
	}
	return &BigQueryWriter{
		client:      client,
		ordersTable: table,
		retry:       cfg.RetryPolicy.withDefaults(),
		sleep:       sleepCtx,
	}, nil
}

func (w *BigQueryWriter) InsertOrderFact(ctx context.Context, row types.OrderFactRow) error {
	return w.put(ctx, w.ordersTable, []cbigquery.ValueSaver{&row})
}

func (w *BigQueryWriter) put(ctx context.Context, table string, rows []cbigquery.ValueSaver) error {
	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := w.client.Put(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !pkgbigquery.IsRetryable(err) {
			return fmt.Errorf("insert %s rows (attempt %d): %w", table, attempt, err)
		}
		if err := w.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
