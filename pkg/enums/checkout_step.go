package enums

import "fmt"

// CheckoutStep is a state of the checkout workflow.
type CheckoutStep string

const (
	CheckoutStepClosed     CheckoutStep = "closed"
	CheckoutStepCart       CheckoutStep = "cart"
	CheckoutStepDetails    CheckoutStep = "details"
	CheckoutStepPayment    CheckoutStep = "payment"
	CheckoutStepSubmitting CheckoutStep = "submitting"
)

var validCheckoutSteps = []CheckoutStep{
	CheckoutStepClosed,
	CheckoutStepCart,
	CheckoutStepDetails,
	CheckoutStepPayment,
	CheckoutStepSubmitting,
}

// String implements fmt.Stringer.
func (c CheckoutStep) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStep.
func (c CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
