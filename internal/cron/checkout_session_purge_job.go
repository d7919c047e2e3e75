package cron

import (
	"context"
	"fmt"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// NewCheckoutSessionPurgeJob drops expired checkout sessions from stores
// that do not evict on their own.
func NewCheckoutSessionPurgeJob(logg *logger.Logger, store sessionPurger) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &checkoutSessionPurgeJob{logg: logg, store: store}, nil
}

type checkoutSessionPurgeJob struct {
	logg  *logger.Logger
	store sessionPurger
}

func (j *checkoutSessionPurgeJob) Name() string { return "checkout-session-purge" }

func (j *checkoutSessionPurgeJob) Run(ctx context.Context) error {
	purged, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge checkout sessions: %w", err)
	}
	if purged > 0 {
		j.logg.Info(j.logg.WithField(ctx, "purged", purged), "expired checkout sessions purged")
	}
	return nil
}
