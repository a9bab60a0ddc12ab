package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/paymentmethods"
	"github.com/angelmondragon/packfinderz-storefront/internal/shipping"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the part of the cart engine checkout reads and clears.
type Cart interface {
	Identity() string
	Items() []cart.Item
	Clear(ctx context.Context) error
}

// ShippingResolver tracks the shipping quote for the current inputs.
type ShippingResolver interface {
	Resolve(items []cart.Item, city string, method enums.DeliveryMethod)
	State() shipping.State
	Retry()
	Reset()
}

// Submitter places orders.
type Submitter interface {
	Submit(ctx context.Context, in orders.SubmitInput) (*orders.Receipt, error)
}

// WorkflowParams wire a Workflow.
type WorkflowParams struct {
	Cart      Cart
	Catalog   catalog.Source
	Payments  paymentmethods.ActiveSource
	Shipping  ShippingResolver
	Submitter Submitter
	History   orders.HistoryRefresher
	Logger    *logger.Logger
	Now       func() time.Time
	NewKey    func() string
}

const maxNotices = 20

// Workflow walks one buyer from cart review to a placed order.
type Workflow struct {
	cart      Cart
	catalog   catalog.Source
	payments  paymentmethods.ActiveSource
	shipping  ShippingResolver
	submitter Submitter
	history   orders.HistoryRefresher
	logg      *logger.Logger
	now       func() time.Time
	newKey    func() string

	mu         sync.Mutex
	step       enums.CheckoutStep
	checkout   Context
	active     []paymentmethods.Method
	eligible   []paymentmethods.Method
	reasons    []Reason
	notices    []Reason
	prices     map[string]decimal.Decimal
	submitting bool
	receipt    *orders.Receipt
}

func NewWorkflow(params WorkflowParams) (*Workflow, error) {
	switch {
	case params.Cart == nil:
		return nil, fmt.Errorf("cart required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog source required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment method source required")
	case params.Shipping == nil:
		return nil, fmt.Errorf("shipping resolver required")
	case params.Submitter == nil:
		return nil, fmt.Errorf("order submitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	newKey := params.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Workflow{
		cart:      params.Cart,
		catalog:   params.Catalog,
		payments:  params.Payments,
		shipping:  params.Shipping,
		submitter: params.Submitter,
		history:   params.History,
		logg:      params.Logger,
		now:       now,
		newKey:    newKey,
		step:      enums.CheckoutStepClosed,
		checkout:  newContext(),
	}, nil
}

// Open starts a fresh checkout at the cart step. While an order is being
// submitted it does nothing, so re-entering cannot start a second attempt.
func (w *Workflow) Open(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return
	}
	w.step = enums.CheckoutStepCart
	w.checkout = newContext()
	w.reasons, w.notices, w.prices, w.receipt = nil, nil, nil, nil
	w.shipping.Reset()
	w.recomputeLocked(ctx, false)
	w.logTransition(ctx, "checkout opened")
}

// Close leaves checkout. An in-flight submission keeps running.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return
	}
	w.step = enums.CheckoutStepClosed
	w.shipping.Reset()
}

// Next advances one step when the current step's requirements hold.
func (w *Workflow) Next(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return errSubmitting()
	}
	w.recomputeLocked(ctx, true)

	switch w.step {
	case enums.CheckoutStepClosed:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not open")
	case enums.CheckoutStepCart:
		if len(w.cart.Items()) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}
		if r := w.lineReasonsLocked(); len(r) > 0 {
			w.reasons = r
			return reasonsError("", "", r)
		}
		w.step = enums.CheckoutStepDetails
	case enums.CheckoutStepDetails:
		if r := validateDetails(w.checkout); len(r) > 0 {
			w.reasons = r
			return reasonsError(pkgerrors.CodeValidation, "delivery details incomplete", r)
		}
		w.step = enums.CheckoutStepPayment
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "confirm the order to continue")
	}
	w.reasons = nil
	w.logTransition(ctx, "checkout advanced")
	return nil
}

// Back returns one step. Going back from the cart step closes checkout.
func (w *Workflow) Back(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return errSubmitting()
	}
	switch w.step {
	case enums.CheckoutStepPayment:
		w.step = enums.CheckoutStepDetails
	case enums.CheckoutStepDetails:
		w.step = enums.CheckoutStepCart
	case enums.CheckoutStepCart:
		w.step = enums.CheckoutStepClosed
		w.shipping.Reset()
	default:
		return nil
	}
	w.reasons = nil
	w.logTransition(ctx, "checkout went back")
	return nil
}

// Update applies buyer input. Delivery method and city changes recompute the
// eligible methods and reissue the shipping quote.
func (w *Workflow) Update(ctx context.Context, patch Patch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return errSubmitting()
	}
	if w.step == enums.CheckoutStepClosed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not open")
	}
	// Validate the whole patch before touching the context so a rejected
	// patch leaves nothing half-applied.
	next := w.checkout
	if patch.DeliveryMethod != nil {
		if !patch.DeliveryMethod.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery method %q", *patch.DeliveryMethod))
		}
		next.DeliveryMethod = *patch.DeliveryMethod
	}
	if patch.DestinationCity != nil {
		next.DestinationCity = trimmed(patch.DestinationCity)
	}
	if patch.ContactPhone != nil {
		next.ContactPhone = trimmed(patch.ContactPhone)
	}
	if patch.ShippingAddress != nil {
		next.ShippingAddress = trimmed(patch.ShippingAddress)
	}
	if patch.PaymentProof != nil {
		next.PaymentProof = trimmed(patch.PaymentProof)
	}
	if patch.SelectedPaymentMethodID != nil {
		id := trimmed(patch.SelectedPaymentMethodID)
		if id != "" {
			if _, ok := paymentmethods.Find(w.eligibleLocked(ctx), id); !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment method %q is not available for this cart", id))
			}
		}
		next.SelectedPaymentMethodID = id
	}

	w.checkout = next
	w.recomputeLocked(ctx, true)
	return nil
}

func (w *Workflow) SetDeliveryMethod(ctx context.Context, method enums.DeliveryMethod) error {
	return w.Update(ctx, Patch{DeliveryMethod: &method})
}

func (w *Workflow) SetDestinationCity(ctx context.Context, city string) error {
	return w.Update(ctx, Patch{DestinationCity: &city})
}

// CartChanged is called after every cart mutation or catalog refresh. A line
// that became invalid past the cart step sends the buyer back to the cart.
func (w *Workflow) CartChanged(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == enums.CheckoutStepClosed {
		return
	}
	w.recomputeLocked(ctx, !w.submitting)
}

// Reconciled reports lines the cart pruned or clamped after a catalog
// refresh. Past the cart step the buyer is sent back to review them.
func (w *Workflow) Reconciled(ctx context.Context, rec cart.Reconciliation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == enums.CheckoutStepClosed {
		return
	}
	var reasons []Reason
	for _, id := range rec.Dropped {
		reasons = append(reasons, Reason{
			Code:      pkgerrors.CodeProductUnavailable,
			Message:   fmt.Sprintf("%s is no longer available and was removed from the cart", id),
			ProductID: id,
		})
	}
	for _, adj := range rec.Adjusted {
		reasons = append(reasons, Reason{
			Code:      pkgerrors.CodeLimitExceeded,
			Message:   fmt.Sprintf("quantity of %s changed from %d to %d", adj.ProductID, adj.From, adj.To),
			ProductID: adj.ProductID,
		})
	}
	if len(reasons) > 0 && !w.submitting &&
		(w.step == enums.CheckoutStepDetails || w.step == enums.CheckoutStepPayment) {
		w.step = enums.CheckoutStepCart
		w.reasons = reasons
		w.logTransition(ctx, "cart reconciled, back to cart")
	} else {
		for _, r := range reasons {
			w.addNoticeLocked(r)
		}
	}
	w.recomputeLocked(ctx, !w.submitting)
}

// RetryShipping reissues a failed shipping quote.
func (w *Workflow) RetryShipping() {
	w.shipping.Retry()
}

// Confirm places the order. Only one confirmation runs at a time; a failed
// attempt returns to the payment step with every field preserved.
func (w *Workflow) Confirm(ctx context.Context) (*orders.Receipt, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, errSubmitting()
	}
	if w.step != enums.CheckoutStepPayment {
		w.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not at the payment step")
	}
	w.recomputeLocked(ctx, true)
	if w.step != enums.CheckoutStepPayment {
		reasons := w.reasons
		w.mu.Unlock()
		return nil, reasonsError("", "", reasons)
	}
	if reasons := w.confirmReasonsLocked(); len(reasons) > 0 {
		w.reasons = reasons
		w.mu.Unlock()
		return nil, reasonsError("", "", reasons)
	}

	req := w.orderRequestLocked()
	key := w.newKey()
	w.submitting = true
	w.step = enums.CheckoutStepSubmitting
	w.reasons = nil
	w.mu.Unlock()

	receipt, err := w.submitter.Submit(ctx, orders.SubmitInput{
		Order:          req,
		IdempotencyKey: key,
		Cart:           w.cart,
		History:        w.history,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.step = enums.CheckoutStepPayment
		w.reasons = []Reason{{Code: pkgerrors.CodeOf(err), Message: errorMessage(err)}}
		w.recomputeLocked(ctx, false)
		w.logg.Warn(w.logg.WithField(ctx, "idempotency_key", key), "checkout submission failed, back to payment")
		return nil, err
	}
	w.receipt = receipt
	w.step = enums.CheckoutStepClosed
	w.checkout = newContext()
	w.prices = nil
	w.shipping.Reset()
	w.logTransition(w.logg.WithOrderID(ctx, receipt.OrderID), "checkout completed")
	return receipt, nil
}

// recomputeLocked refreshes everything derived from the cart and inputs:
// eligible methods, selection validity, price notices and the shipping quote.
func (w *Workflow) recomputeLocked(ctx context.Context, forceBack bool) {
	items := w.cart.Items()
	snap := w.catalog.Current()
	now := w.now()

	w.eligibleLocked(ctx)
	if sel := w.checkout.SelectedPaymentMethodID; sel != "" {
		if _, ok := paymentmethods.Find(w.eligible, sel); !ok {
			w.checkout.SelectedPaymentMethodID = ""
			w.addNoticeLocked(Reason{
				Code:    pkgerrors.CodeValidation,
				Message: "the selected payment method is no longer accepted for this cart",
				Field:   "selected_payment_method_id",
			})
		}
	}
	w.trackPricesLocked(items, snap, now)

	if forceBack && (w.step == enums.CheckoutStepDetails || w.step == enums.CheckoutStepPayment) {
		if r := validateLines(items, snap, now); len(r) > 0 {
			w.step = enums.CheckoutStepCart
			w.reasons = r
			w.logTransition(ctx, "cart line became invalid, back to cart")
		}
	}

	if w.step != enums.CheckoutStepClosed {
		w.shipping.Resolve(items, w.checkout.DestinationCity, w.checkout.DeliveryMethod)
	}
}

// trackPricesLocked notes price moves since the last recompute. The live
// price is what gets charged.
func (w *Workflow) trackPricesLocked(items []cart.Item, snap *catalog.Snapshot, now time.Time) {
	next := make(map[string]decimal.Decimal, len(items))
	for _, it := range items {
		p, ok := snap.Lookup(it.ProductID, now)
		if !ok {
			continue
		}
		next[it.ProductID] = p.Price
		if prev, seen := w.prices[it.ProductID]; seen && !prev.Equal(p.Price) {
			w.addNoticeLocked(Reason{
				Code:      pkgerrors.CodePriceChanged,
				Message:   fmt.Sprintf("price of %s changed from %s to %s", p.Name, prev.String(), p.Price.String()),
				ProductID: it.ProductID,
			})
		}
	}
	w.prices = next
}

// eligibleLocked reloads the active methods and recomputes which of them
// every cart line accepts.
func (w *Workflow) eligibleLocked(ctx context.Context) []paymentmethods.Method {
	if active, err := w.payments.Active(ctx); err != nil {
		w.logg.Error(ctx, "failed to load active payment methods", err)
	} else {
		w.active = active
	}
	w.eligible = paymentmethods.Eligible(w.cart.Items(), w.catalog.Current(), w.now(), w.active)
	return w.eligible
}

// addNoticeLocked keeps one notice per code, product and field, the latest
// wins, and at most maxNotices overall.
func (w *Workflow) addNoticeLocked(r Reason) {
	for i, n := range w.notices {
		if n.Code == r.Code && n.ProductID == r.ProductID && n.Field == r.Field {
			w.notices = append(w.notices[:i], w.notices[i+1:]...)
			break
		}
	}
	w.notices = append(w.notices, r)
	if over := len(w.notices) - maxNotices; over > 0 {
		w.notices = append([]Reason(nil), w.notices[over:]...)
	}
}

func (w *Workflow) lineReasonsLocked() []Reason {
	return validateLines(w.cart.Items(), w.catalog.Current(), w.now())
}

func (w *Workflow) confirmReasonsLocked() []Reason {
	if r := w.lineReasonsLocked(); len(r) > 0 {
		return r
	}
	if r := validateDetails(w.checkout); len(r) > 0 {
		return r
	}
	if r := validatePayment(w.checkout, w.eligible); len(r) > 0 {
		return r
	}
	return validateShipping(w.checkout, w.shipping.State())
}

func (w *Workflow) shippingCostLocked() decimal.Decimal {
	if w.checkout.DeliveryMethod != enums.DeliveryMethodShipping {
		return decimal.Zero
	}
	return w.shipping.State().Cost
}

func (w *Workflow) orderRequestLocked() orders.CreateOrderRequest {
	summary := cart.Summarize(w.cart.Items(), w.catalog.Current(), w.now())
	lines := make([]orders.OrderLine, 0, len(summary.Items))
	for _, l := range summary.Items {
		lines = append(lines, orders.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	method, _ := paymentmethods.Find(w.eligible, w.checkout.SelectedPaymentMethodID)
	cost := w.shippingCostLocked()
	w.checkout.ShippingCost = cost

	req := orders.CreateOrderRequest{
		BuyerIdentity:     w.cart.Identity(),
		Items:             lines,
		DeliveryMethod:    w.checkout.DeliveryMethod,
		ContactPhone:      w.checkout.ContactPhone,
		PaymentMethodID:   method.ID,
		PaymentMethodName: method.Name,
		CashOnDelivery:    method.CashOnDelivery,
		PaymentProof:      w.checkout.PaymentProof,
		ShippingCost:      cost,
		Subtotal:          summary.Total,
		Total:             summary.Total.Add(cost),
	}
	if w.checkout.DeliveryMethod == enums.DeliveryMethodShipping {
		req.DestinationCity = w.checkout.DestinationCity
		req.ShippingAddress = w.checkout.ShippingAddress
	}
	return req
}

func (w *Workflow) logTransition(ctx context.Context, msg string) {
	w.logg.Info(w.logg.WithFields(ctx, map[string]any{
		"identity": w.cart.Identity(),
		"step":     w.step.String(),
	}), msg)
}

func errSubmitting() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "an order submission is already in progress")
}

func errorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}
