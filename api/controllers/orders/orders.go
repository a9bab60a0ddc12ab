package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	internalorders "github.com/angelmondragon/packfinderz-storefront/internal/orders"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Session is the order side of a buyer session.
type Session interface {
	Orders(ctx context.Context, loadMore bool) ([]internalorders.Order, bool, error)
	CancelOrder(ctx context.Context, orderID string) (*internalorders.CancelResult, error)
}

type SessionLookup func(ctx context.Context, identity string) (Session, error)

// ListResponse is the buyer's order list loaded so far.
type ListResponse struct {
	Items   []internalorders.Order `json:"items"`
	HasMore bool                   `json:"has_more"`
}

// List returns the first page of the buyer's orders, or everything loaded so
// far plus the next page when more=true.
func List(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}

		loadMore, err := validators.ParseQueryBool(r, "more")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, hasMore, err := session.Orders(r.Context(), loadMore)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if items == nil {
			items = []internalorders.Order{}
		}
		responses.WriteSuccess(w, ListResponse{Items: items, HasMore: hasMore})
	}
}

// CancelOrder cancels one of the buyer's orders.
func CancelOrder(lookup SessionLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := resolve(w, r, lookup, logg)
		if !ok {
			return
		}

		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		result, err := session.CancelOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func resolve(w http.ResponseWriter, r *http.Request, lookup SessionLookup, logg *logger.Logger) (Session, bool) {
	if lookup == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
		return nil, false
	}
	session, err := lookup(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return session, true
}
