package enums

import "fmt"

// PaymentOutcome is the settlement result reported by the payment processor.
type PaymentOutcome string

const (
	PaymentOutcomeSucceeded PaymentOutcome = "succeeded"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
	PaymentOutcomeExpired   PaymentOutcome = "expired"
)

var validPaymentOutcomes = []PaymentOutcome{
	PaymentOutcomeSucceeded,
	PaymentOutcomeFailed,
	PaymentOutcomeExpired,
}

func (o PaymentOutcome) IsValid() bool {
	for _, candidate := range validPaymentOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// TargetStatus returns the order status an outcome settles a pending order into.
func (o PaymentOutcome) TargetStatus() (OrderStatus, error) {
	switch o {
	case PaymentOutcomeSucceeded:
		return OrderStatusPaid, nil
	case PaymentOutcomeFailed, PaymentOutcomeExpired:
		return OrderStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid payment outcome %q", o)
	}
}
