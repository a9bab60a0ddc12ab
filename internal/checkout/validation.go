package checkout

import (
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/paymentmethods"
	"github.com/angelmondragon/packfinderz-storefront/internal/shipping"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// Reason explains why a transition or confirmation is blocked.
type Reason struct {
	Code      pkgerrors.Code `json:"code"`
	Message   string         `json:"message"`
	Field     string         `json:"field,omitempty"`
	ProductID string         `json:"product_id,omitempty"`
}

// validateLines reports cart lines that can no longer be bought as they are.
func validateLines(items []cart.Item, snap *catalog.Snapshot, now time.Time) []Reason {
	var reasons []Reason
	for _, it := range items {
		p, ok := snap.Lookup(it.ProductID, now)
		switch {
		case !ok:
			reasons = append(reasons, Reason{
				Code:      pkgerrors.CodeProductUnavailable,
				Message:   fmt.Sprintf("%s is no longer available", it.ProductID),
				ProductID: it.ProductID,
			})
		case it.Quantity > p.PurchaseLimitPerBuyer:
			reasons = append(reasons, Reason{
				Code:      pkgerrors.CodeLimitExceeded,
				Message:   fmt.Sprintf("%s is limited to %d per buyer", p.Name, p.PurchaseLimitPerBuyer),
				ProductID: it.ProductID,
			})
		case !p.HasStockFor(it.Quantity):
			reasons = append(reasons, Reason{
				Code:      pkgerrors.CodeInsufficientStock,
				Message:   fmt.Sprintf("only %d of %s left in stock", *p.StockAvailable, p.Name),
				ProductID: it.ProductID,
			})
		}
	}
	return reasons
}

// validateDetails checks the fields the delivery method requires.
func validateDetails(c Context) []Reason {
	if c.DeliveryMethod != enums.DeliveryMethodShipping {
		return nil
	}
	var reasons []Reason
	required := []struct{ field, value string }{
		{"destination_city", c.DestinationCity},
		{"shipping_address", c.ShippingAddress},
		{"contact_phone", c.ContactPhone},
	}
	for _, r := range required {
		if r.value == "" {
			reasons = append(reasons, Reason{
				Code:    pkgerrors.CodeValidation,
				Message: r.field + " is required for shipping",
				Field:   r.field,
			})
		}
	}
	return reasons
}

// validatePayment checks the payment selection against the eligible set.
func validatePayment(c Context, eligible []paymentmethods.Method) []Reason {
	if len(eligible) == 0 {
		return []Reason{{
			Code:    pkgerrors.CodeNoCommonPaymentMethod,
			Message: "no payment method is accepted by every item in the cart",
		}}
	}
	selected, ok := paymentmethods.Find(eligible, c.SelectedPaymentMethodID)
	if !ok {
		return []Reason{{
			Code:    pkgerrors.CodeValidation,
			Message: "select one of the available payment methods",
			Field:   "selected_payment_method_id",
		}}
	}
	if !selected.CashOnDelivery && c.PaymentProof == "" {
		return []Reason{{
			Code:    pkgerrors.CodeValidation,
			Message: "attach proof of payment for " + selected.Name,
			Field:   "payment_proof",
		}}
	}
	return nil
}

// validateShipping blocks confirmation until a shipping quote exists for
// the current inputs. A failed refresh keeps an earlier quote usable.
func validateShipping(c Context, st shipping.State) []Reason {
	if c.DeliveryMethod != enums.DeliveryMethodShipping {
		return nil
	}
	if st.Pending {
		return []Reason{{Code: pkgerrors.CodeStateConflict, Message: "shipping cost is still being calculated"}}
	}
	if !st.Resolved {
		if st.Err != nil {
			return []Reason{{Code: pkgerrors.CodeShippingFailed, Message: "shipping cost could not be calculated, retry to continue"}}
		}
		return []Reason{{Code: pkgerrors.CodeStateConflict, Message: "shipping cost has not been calculated yet"}}
	}
	return nil
}

func reasonsError(code pkgerrors.Code, message string, reasons []Reason) error {
	if len(reasons) > 0 && code == "" {
		code = reasons[0].Code
	}
	if message == "" && len(reasons) > 0 {
		message = reasons[0].Message
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{"reasons": reasons})
}
