package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Publish outcomes for outbox rows.
const (
	PublishPublished  = "published"
	PublishRetry      = "retry"
	PublishDeadLetter = "dead_letter"
)

// OutboxMetrics records outbox publisher throughput. A nil value is a no-op.
type OutboxMetrics struct {
	rows  *prometheus.CounterVec
	batch prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_rows_total",
			Help:      "Outbox rows handled by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_batch_duration_seconds",
			Help:      "Time spent publishing one outbox batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.rows, m.batch)
	return m
}

func (m *OutboxMetrics) ObserveRow(eventType, outcome string) {
	if m == nil || m.rows == nil {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) ObserveBatch(d time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(d.Seconds())
}
