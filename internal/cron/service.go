package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	defaultInterval   = time.Minute
	defaultJobTimeout = 2 * time.Minute
)

type jobRecorder interface {
	ObserveJob(job string, d time.Duration, err error)
	CycleSkipped()
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	// Metrics is optional.
	Metrics    jobRecorder
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding Lock.
// Jobs run in registration order and one failure does not stop the rest.
type Service struct {
	logg       *logger.Logger
	jobs       []Job
	lock       Lock
	metrics    jobRecorder
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       p.Logger,
		lock:       p.Lock,
		metrics:    p.Metrics,
		interval:   orDefault(p.Interval, defaultInterval),
		jobTimeout: orDefault(p.JobTimeout, defaultJobTimeout),
	}
	if p.Registry != nil {
		s.jobs = p.Registry.Jobs()
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle. It returns an error only when the lock itself
// could not be consulted; job failures are logged and recorded.
func (s *Service) RunOnce(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		if s.metrics != nil {
			s.metrics.CycleSkipped()
		}
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return nil
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := s.invoke(ctx, job)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveJob(job.Name(), elapsed, err)
	}
	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return
	}
	s.logg.Debug(ctx, "cron.job_completed")
}

// invoke bounds job by the per-job timeout and turns a panic into an error.
func (s *Service) invoke(ctx context.Context, job Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
