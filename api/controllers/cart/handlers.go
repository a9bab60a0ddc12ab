package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	cartsvc "github.com/angelmondragon/packfinderz-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Session is the slice of a buyer session the cart endpoints drive.
type Session interface {
	Cart() cartsvc.Summary
	CartView() cartsvc.View
	Add(ctx context.Context, productID string, qty int, silent bool) (cartsvc.Outcome, error)
	Decrease(ctx context.Context, productID string) (cartsvc.Outcome, error)
	SetQuantity(ctx context.Context, productID string, delta int) (cartsvc.Outcome, error)
	Remove(ctx context.Context, productID string) (cartsvc.Outcome, error)
	Clear(ctx context.Context) error
}

// SessionLookup resolves the session of the identity on the request.
type SessionLookup func(ctx context.Context, identity string) (Session, error)

// CartFetch returns the buyer's cart with any items the catalog removed or
// clamped since the buyer last edited it.
func CartFetch(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, session.CartView())
	}
}

// CartAddItem adds quantity of a product. Rule violations come back as a
// rejected outcome with a 200, not as an error.
func CartAddItem(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}

		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := session.Add(r.Context(), strings.TrimSpace(payload.ProductID), payload.Quantity, payload.Silent)
		writeMutation(w, r, logg, session, out, err)
	}
}

// CartUpdateItem shifts an item's quantity by delta, clamped to the purchase limit.
func CartUpdateItem(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := session.SetQuantity(r.Context(), productID, payload.Delta)
		writeMutation(w, r, logg, session, out, err)
	}
}

func CartDecreaseItem(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := session.Decrease(r.Context(), productID)
		writeMutation(w, r, logg, session, out, err)
	}
}

func CartRemoveItem(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := session.Remove(r.Context(), productID)
		writeMutation(w, r, logg, session, out, err)
	}
}

// CartClear empties the cart and deletes its persisted record.
func CartClear(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}
		if err := session.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.Cart())
	}
}

func resolve(w http.ResponseWriter, r *http.Request, lookup SessionLookup, logg *logger.Logger) (Session, bool) {
	if lookup == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable"))
		return nil, false
	}
	session, err := lookup(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return session, true
}

func productIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "productId"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return id, nil
}

func writeMutation(w http.ResponseWriter, r *http.Request, logg *logger.Logger, session Session, out cartsvc.Outcome, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, MutationResponse{Outcome: out, Cart: session.Cart()})
}
