package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron records scheduler cycles and per-job runs. A nil *Cron is a no-op.
type Cron struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	skipped  prometheus.Counter
}

func NewCron(reg prometheus.Registerer) *Cron {
	if reg == nil {
		return nil
	}
	c := &Cron{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of cron job runs.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because another instance held the lock.",
		}),
	}
	reg.MustRegister(c.runs, c.duration, c.skipped)
	return c
}

// ObserveJob records one run of job. A nil err counts as OutcomeOK.
func (c *Cron) ObserveJob(job string, d time.Duration, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.runs.WithLabelValues(job, outcome).Inc()
	c.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (c *Cron) CycleSkipped() {
	if c == nil {
		return
	}
	c.skipped.Inc()
}

// normalizeLabel keeps empty label values out of the exported series.
func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
