package enums

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if !OrderStatusPaid.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("paid and cancelled must be terminal")
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if got, err := ParseOrderStatus("paid"); err != nil || got != OrderStatusPaid {
		t.Fatalf("expected paid, got %q (%v)", got, err)
	}
}

func TestPaymentOutcomeTargetStatus(t *testing.T) {
	cases := map[PaymentOutcome]OrderStatus{
		PaymentOutcomeSucceeded: OrderStatusPaid,
		PaymentOutcomeFailed:    OrderStatusCancelled,
		PaymentOutcomeExpired:   OrderStatusCancelled,
	}
	for outcome, want := range cases {
		got, err := outcome.TargetStatus()
		if err != nil {
			t.Fatalf("%s: unexpected error %v", outcome, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s got %s", outcome, want, got)
		}
	}
	if _, err := PaymentOutcome("refunded").TargetStatus(); err == nil {
		t.Fatal("expected unknown outcome to fail")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventOrderPaid.IsValid() || OutboxEventType("media_uploaded").IsValid() {
		t.Fatal("unexpected event type validity")
	}
	if _, err := ParseOutboxAggregateType("cart"); err != nil {
		t.Fatalf("cart aggregate should parse: %v", err)
	}
	if _, err := ParseCheckoutStep("done"); err == nil {
		t.Fatal("expected unknown step to fail")
	}
}

func TestEventTypesPinAggregate(t *testing.T) {
	for _, e := range []OutboxEventType{EventOrderCreated, EventOrderPaid, EventOrderCancelled} {
		if e.Aggregate() != AggregateOrder {
			t.Fatalf("%s should belong to order", e)
		}
	}
	if EventCartMerged.Aggregate() != AggregateCart {
		t.Fatal("cart_merged should belong to cart")
	}
	if OutboxEventType("nope").Aggregate() != "" {
		t.Fatal("unknown event should have no aggregate")
	}
	if _, err := ParseOutboxEventType("order_paid"); err != nil {
		t.Fatalf("order_paid should parse: %v", err)
	}
	if !OutboxDLQReasonNonRetryable.IsValid() || OutboxDLQErrorReason("oops").IsValid() {
		t.Fatal("unexpected dlq reason validity")
	}
}
