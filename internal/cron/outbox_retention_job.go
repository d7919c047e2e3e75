package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 7 * 24 * time.Hour
	defaultDLQRetention    = 30 * 24 * time.Hour
	defaultRetentionBatch  = 1000
)

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type deadLetterPruner interface {
	PruneFailedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository publishedPruner
	// DLQ is optional. When set, dead letters older than DLQRetention are
	// dropped with their parked outbox rows.
	DLQ          deadLetterPruner
	Retention    time.Duration
	DLQRetention time.Duration
	BatchSize    int
}

// NewOutboxRetentionJob prunes published outbox rows and stale dead letters.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		published:    params.Repository,
		deadLetters:  params.DLQ,
		retention:    orDefault(params.Retention, defaultOutboxRetention),
		dlqRetention: orDefault(params.DLQRetention, defaultDLQRetention),
		batch:        params.BatchSize,
		now:          time.Now,
	}
	if job.batch <= 0 {
		job.batch = defaultRetentionBatch
	}
	return job, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	published    publishedPruner
	deadLetters  deadLetterPruner
	retention    time.Duration
	dlqRetention time.Duration
	batch        int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{"retention": j.retention.String()}

	published, err := j.drain(ctx, now.Add(-j.retention), j.published.DeletePublishedBefore)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	fields["published_deleted"] = published

	if j.deadLetters != nil {
		dead, err := j.drain(ctx, now.Add(-j.dlqRetention), j.deadLetters.PruneFailedBefore)
		if err != nil {
			return fmt.Errorf("dlq retention: %w", err)
		}
		fields["dlq_retention"] = j.dlqRetention.String()
		fields["dlq_deleted"] = dead
	}

	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}

// drain calls prune in batches until a short batch shows nothing is left.
func (j *outboxRetentionJob) drain(ctx context.Context, cutoff time.Time, prune func(context.Context, time.Time, int) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := prune(ctx, cutoff, j.batch)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batch) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
