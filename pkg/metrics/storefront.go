package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Outcome labels shared by the storefront counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeDeferred = "deferred"
	OutcomeReused   = "reused"
)

// Storefront records cart, merge, checkout and payment activity. A nil
// *Storefront is a valid no-op recorder.
type Storefront struct {
	cartMutations   *prometheus.CounterVec
	merges          *prometheus.CounterVec
	mergeClamped    prometheus.Counter
	checkoutSteps   *prometheus.CounterVec
	paymentSessions *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

// NewStorefront registers the storefront metrics on reg.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	s := &Storefront{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merges_total",
			Help:      "Guest to user cart merges by outcome.",
		}, []string{"outcome"}),
		mergeClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merge_clamped_lines_total",
			Help:      "Merged lines whose quantity was clamped to stock.",
		}),
		checkoutSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_transitions_total",
			Help:      "Checkout state machine transitions by target step and outcome.",
		}, []string{"step", "outcome"}),
		paymentSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_sessions_total",
			Help:      "Payment session requests by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_events_total",
			Help:      "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(s.cartMutations, s.merges, s.mergeClamped, s.checkoutSteps, s.paymentSessions, s.webhookEvents)
	return s
}

func (s *Storefront) ObserveCartMutation(op, outcome string) {
	if s == nil || s.cartMutations == nil {
		return
	}
	s.cartMutations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

func (s *Storefront) ObserveMerge(outcome string, clamped int) {
	if s == nil || s.merges == nil {
		return
	}
	s.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
	if clamped > 0 {
		s.mergeClamped.Add(float64(clamped))
	}
}

func (s *Storefront) ObserveCheckoutTransition(step, outcome string) {
	if s == nil || s.checkoutSteps == nil {
		return
	}
	s.checkoutSteps.WithLabelValues(normalizeLabel(step), normalizeLabel(outcome)).Inc()
}

func (s *Storefront) ObservePaymentSession(outcome string) {
	if s == nil || s.paymentSessions == nil {
		return
	}
	s.paymentSessions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *Storefront) ObserveWebhook(eventType, outcome string) {
	if s == nil || s.webhookEvents == nil {
		return
	}
	s.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
