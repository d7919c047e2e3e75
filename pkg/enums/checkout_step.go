package enums

import "fmt"

// CheckoutStep is the position of a checkout session in its state machine.
type CheckoutStep string

const (
	CheckoutStepShippingInfo   CheckoutStep = "shipping_info"
	CheckoutStepPaymentPending CheckoutStep = "payment_pending"
	CheckoutStepConfirmed      CheckoutStep = "confirmed"
)

var validCheckoutSteps = []CheckoutStep{
	CheckoutStepShippingInfo,
	CheckoutStepPaymentPending,
	CheckoutStepConfirmed,
}

func (s CheckoutStep) String() string {
	return string(s)
}

func (s CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
