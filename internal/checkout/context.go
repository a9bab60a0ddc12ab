package checkout

import (
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Context is the buyer input for one checkout attempt. It is reset every time
// checkout is opened.
type Context struct {
	DeliveryMethod          enums.DeliveryMethod `json:"delivery_method"`
	DestinationCity         string               `json:"destination_city,omitempty"`
	ContactPhone            string               `json:"contact_phone,omitempty"`
	ShippingAddress         string               `json:"shipping_address,omitempty"`
	SelectedPaymentMethodID string               `json:"selected_payment_method_id,omitempty"`
	PaymentProof            string               `json:"payment_proof,omitempty"`
	ShippingCost            decimal.Decimal      `json:"shipping_cost"`
}

func newContext() Context {
	return Context{DeliveryMethod: enums.DeliveryMethodShipping, ShippingCost: decimal.Zero}
}

// Patch updates selected Context fields; nil fields are left alone.
type Patch struct {
	DeliveryMethod          *enums.DeliveryMethod
	DestinationCity         *string
	ContactPhone            *string
	ShippingAddress         *string
	SelectedPaymentMethodID *string
	PaymentProof            *string
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
