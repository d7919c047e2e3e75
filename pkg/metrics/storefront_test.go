package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStorefrontCountersExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefront(reg)

	m.ObserveCartMutation("add", OutcomeOK)
	m.ObserveCartMutation("add", OutcomeOK)
	m.ObserveMerge(OutcomeOK, 2)
	m.ObservePaymentSession(OutcomeReused)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := counterValue(mfs, "storefront_cart_mutations_total", "op", "add"); err != nil || got != 2 {
		t.Fatalf("expected two add mutations, got %f (%v)", got, err)
	}
	if got, err := counterValue(mfs, "storefront_payment_sessions_total", "outcome", OutcomeReused); err != nil || got != 1 {
		t.Fatalf("expected one reused session, got %f (%v)", got, err)
	}
	mf := family(mfs, "storefront_cart_merge_clamped_lines_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatal("expected clamped lines counter to be 2")
	}
}

func TestEmptyLabelsExportAsUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefront(reg)
	m.ObserveCartMutation("", OutcomeOK)
	m.ObserveWebhook("", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := counterValue(mfs, "storefront_cart_mutations_total", "op", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty op to export as unknown, got %f (%v)", got, err)
	}
	if got, err := counterValue(mfs, "storefront_payment_webhook_events_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty outcome to export as unknown, got %f (%v)", got, err)
	}
}

func TestNilStorefrontIsNoop(t *testing.T) {
	var m *Storefront
	m.ObserveCartMutation("add", OutcomeOK)
	m.ObserveMerge(OutcomeDeferred, 1)
	m.ObserveCheckoutTransition("payment_pending", OutcomeOK)
	m.ObservePaymentSession(OutcomeError)
	m.ObserveWebhook("checkout.session.completed", OutcomeOK)

	NewStorefront(nil).ObserveMerge(OutcomeOK, 3)
}
