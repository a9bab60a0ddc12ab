package enums

import "fmt"

// CartOutcomeStatus reports how a cart mutation was resolved.
type CartOutcomeStatus string

const (
	CartOutcomeApplied           CartOutcomeStatus = "applied"
	CartOutcomeUnavailable       CartOutcomeStatus = "unavailable"
	CartOutcomeLimitExceeded     CartOutcomeStatus = "limit_exceeded"
	CartOutcomeInsufficientStock CartOutcomeStatus = "insufficient_stock"
	CartOutcomeInvalidQuantity   CartOutcomeStatus = "invalid_quantity"
	CartOutcomeNotInCart         CartOutcomeStatus = "not_in_cart"
)

var validCartOutcomeStatuses = []CartOutcomeStatus{
	CartOutcomeApplied,
	CartOutcomeUnavailable,
	CartOutcomeLimitExceeded,
	CartOutcomeInsufficientStock,
	CartOutcomeInvalidQuantity,
	CartOutcomeNotInCart,
}

// String implements fmt.Stringer.
func (c CartOutcomeStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartOutcomeStatus.
func (c CartOutcomeStatus) IsValid() bool {
	for _, candidate := range validCartOutcomeStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartOutcomeStatus converts raw input into a CartOutcomeStatus.
func ParseCartOutcomeStatus(value string) (CartOutcomeStatus, error) {
	for _, candidate := range validCartOutcomeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart outcome status %q", value)
}
