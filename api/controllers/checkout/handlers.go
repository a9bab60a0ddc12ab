package checkout

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	checkoutsvc "github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Workflow is the buyer's checkout as driven over HTTP.
type Workflow interface {
	Open(ctx context.Context)
	Close()
	Next(ctx context.Context) error
	Back(ctx context.Context) error
	Update(ctx context.Context, patch checkoutsvc.Patch) error
	RetryShipping()
	Confirm(ctx context.Context) (*orders.Receipt, error)
	View() checkoutsvc.View
}

// WorkflowLookup resolves the checkout of the identity on the request.
type WorkflowLookup func(ctx context.Context, identity string) (Workflow, error)

func CheckoutView(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, wf.View())
	}
}

// CheckoutOpen starts a fresh checkout at the cart step.
func CheckoutOpen(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		wf.Open(r.Context())
		responses.WriteSuccess(w, wf.View())
	}
}

func CheckoutClose(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		wf.Close()
		responses.WriteSuccess(w, wf.View())
	}
}

// CheckoutNext advances one step; a blocked transition returns its reasons as details.
func CheckoutNext(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return stepHandler(lookup, logg, func(ctx context.Context, wf Workflow) error {
		return wf.Next(ctx)
	})
}

func CheckoutBack(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return stepHandler(lookup, logg, func(ctx context.Context, wf Workflow) error {
		return wf.Back(ctx)
	})
}

func CheckoutRetryShipping(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return stepHandler(lookup, logg, func(_ context.Context, wf Workflow) error {
		wf.RetryShipping()
		return nil
	})
}

// CheckoutUpdate patches the delivery and payment details.
func CheckoutUpdate(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}

		var payload UpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := wf.Update(r.Context(), payload.toPatch()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wf.View())
	}
}

// CheckoutConfirm places the order. The submission runs detached from the
// request, so a client disconnect does not abandon it.
func CheckoutConfirm(lookup WorkflowLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}

		receipt, err := wf.Confirm(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), receipt.OrderID), "checkout confirmed")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

func stepHandler(lookup WorkflowLookup, logg *logger.Logger, step func(context.Context, Workflow) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		if err := step(r.Context(), wf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wf.View())
	}
}

func resolve(w http.ResponseWriter, r *http.Request, lookup WorkflowLookup, logg *logger.Logger) (Workflow, bool) {
	if lookup == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
		return nil, false
	}
	wf, err := lookup(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return wf, true
}
