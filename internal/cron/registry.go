package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Job is one unit of background work run on every cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds a worker's jobs in registration order, keyed by name.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, skipping nil entries.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return errors.New("cron job name is required")
	}
	if slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == name }) {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
