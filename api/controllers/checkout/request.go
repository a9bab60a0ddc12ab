package checkout

import (
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	checkoutsvc "github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
)

const maxFieldLen = 512

// UpdateRequest carries only the fields being changed; omitted fields keep their value.
type UpdateRequest struct {
	DeliveryMethod  *string `json:"delivery_method" validate:"omitempty,oneof=shipping pickup"`
	DestinationCity *string `json:"destination_city" validate:"omitempty,max=256"`
	ContactPhone    *string `json:"contact_phone" validate:"omitempty,max=64"`
	ShippingAddress *string `json:"shipping_address" validate:"omitempty,max=256"`
	PaymentMethodID *string `json:"payment_method_id" validate:"omitempty,max=64"`
	PaymentProof    *string `json:"payment_proof" validate:"omitempty,max=512"`
}

func (u UpdateRequest) toPatch() checkoutsvc.Patch {
	var patch checkoutsvc.Patch
	if u.DeliveryMethod != nil {
		method := enums.DeliveryMethod(*u.DeliveryMethod)
		patch.DeliveryMethod = &method
	}
	patch.DestinationCity = sanitized(u.DestinationCity)
	patch.ContactPhone = sanitized(u.ContactPhone)
	patch.ShippingAddress = sanitized(u.ShippingAddress)
	patch.SelectedPaymentMethodID = sanitized(u.PaymentMethodID)
	patch.PaymentProof = sanitized(u.PaymentProof)
	return patch
}

func sanitized(v *string) *string {
	if v == nil {
		return nil
	}
	out := validators.SanitizeString(*v, maxFieldLen)
	return &out
}
