package cron

import (
	"context"
	"fmt"

	"github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const defaultMergeRetryBatch = 50

type mergeRetrier interface {
	RetryPendingMerges(ctx context.Context, limit int) (cart.RetryReport, error)
}

type MergeRetryJobParams struct {
	Logger    *logger.Logger
	Carts     mergeRetrier
	BatchSize int
}

// NewMergeRetryJob replays cart merges that were deferred while the stock
// oracle was unavailable.
func NewMergeRetryJob(params MergeRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultMergeRetryBatch
	}
	return &mergeRetryJob{logg: params.Logger, carts: params.Carts, batch: batch}, nil
}

type mergeRetryJob struct {
	logg  *logger.Logger
	carts mergeRetrier
	batch int
}

func (j *mergeRetryJob) Name() string { return "cart-merge-retry" }

func (j *mergeRetryJob) Run(ctx context.Context) error {
	report, err := j.carts.RetryPendingMerges(ctx, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"attempted": report.Attempted,
		"merged":    report.Merged,
		"deferred":  report.Deferred,
		"dropped":   report.Dropped,
		"failed":    report.Failed,
	})
	if err != nil {
		return fmt.Errorf("retry pending merges: %w", err)
	}
	if report.Attempted > 0 {
		j.logg.Info(logCtx, "pending cart merges processed")
	}
	return nil
}
