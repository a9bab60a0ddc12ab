package checkout

import (
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/paymentmethods"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// ShippingView is the shipping quote as shown to the buyer.
type ShippingView struct {
	Cost     decimal.Decimal `json:"cost"`
	Resolved bool            `json:"resolved"`
	Pending  bool            `json:"pending"`
	Error    string          `json:"error,omitempty"`
}

// View is everything the UI needs to render checkout and gate its controls.
type View struct {
	Step    enums.CheckoutStep `json:"step"`
	Context Context            `json:"context"`
	// Reasons explain the last blocked transition or failed submission.
	Reasons []Reason `json:"reasons,omitempty"`
	// Blocking lists what currently prevents moving forward.
	Blocking        []Reason                `json:"blocking,omitempty"`
	Notices         []Reason                `json:"notices,omitempty"`
	EligibleMethods []paymentmethods.Method `json:"eligible_methods"`
	Shipping        ShippingView            `json:"shipping"`
	Cart            cart.Summary            `json:"cart"`
	Total           decimal.Decimal         `json:"total"`
	CanConfirm      bool                    `json:"can_confirm"`
	IsSubmitting    bool                    `json:"is_submitting"`
	Receipt         *orders.Receipt         `json:"receipt,omitempty"`
}

func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	summary := cart.Summarize(w.cart.Items(), w.catalog.Current(), w.now())
	st := w.shipping.State()
	cost := w.shippingCostLocked()
	checkoutCtx := w.checkout
	checkoutCtx.ShippingCost = cost

	v := View{
		Step:            w.step,
		Context:         checkoutCtx,
		Reasons:         append([]Reason(nil), w.reasons...),
		Notices:         append([]Reason(nil), w.notices...),
		EligibleMethods: append([]paymentmethods.Method{}, w.eligible...),
		Cart:            summary,
		Total:           summary.Total.Add(cost),
		IsSubmitting:    w.submitting,
		Receipt:         w.receipt,
		Shipping: ShippingView{
			Cost:     cost,
			Resolved: st.Resolved || w.checkout.DeliveryMethod != enums.DeliveryMethodShipping,
			Pending:  st.Pending && w.checkout.DeliveryMethod == enums.DeliveryMethodShipping,
		},
	}
	if st.Err != nil && w.checkout.DeliveryMethod == enums.DeliveryMethodShipping {
		v.Shipping.Error = errorMessage(st.Err)
	}

	switch w.step {
	case enums.CheckoutStepCart:
		v.Blocking = w.lineReasonsLocked()
	case enums.CheckoutStepDetails:
		v.Blocking = validateDetails(w.checkout)
	case enums.CheckoutStepPayment:
		v.Blocking = w.confirmReasonsLocked()
		v.CanConfirm = !w.submitting && len(v.Blocking) == 0
	}
	return v
}
