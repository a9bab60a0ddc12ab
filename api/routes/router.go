package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packfinderz-storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/packfinderz-storefront/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/packfinderz-storefront/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/packfinderz-storefront/api/controllers/orders"
	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/internal/storefront"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-storefront/pkg/redis"
)

// Sessions hands out per-identity buyer sessions.
type Sessions interface {
	Session(ctx context.Context, identity string) (*storefront.Session, error)
}

// Params wire the HTTP surface.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	Sessions    Sessions
	Catalog     controllers.CatalogService
	Idempotency pkgredis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Metrics     http.Handler
}

func NewRouter(p Params) http.Handler {
	logg := p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(p.Config.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, logg, p.Readiness))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	cartLookup := func(ctx context.Context, identity string) (cartcontrollers.Session, error) {
		s, err := p.Sessions.Session(ctx, identity)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	checkoutLookup := func(ctx context.Context, identity string) (checkoutcontrollers.Workflow, error) {
		s, err := p.Sessions.Session(ctx, identity)
		if err != nil {
			return nil, err
		}
		return s.Checkout(), nil
	}
	ordersLookup := func(ctx context.Context, identity string) (ordercontrollers.Session, error) {
		s, err := p.Sessions.Session(ctx, identity)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/refresh", controllers.CatalogRefresh(p.Catalog, logg))
			r.Get("/products/{productId}", controllers.CatalogProduct(p.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartLookup, logg))
			r.Delete("/", cartcontrollers.CartClear(cartLookup, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartLookup, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(cartLookup, logg))
			r.Post("/items/{productId}/decrease", cartcontrollers.CartDecreaseItem(cartLookup, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(cartLookup, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.CheckoutView(checkoutLookup, logg))
			r.Patch("/", checkoutcontrollers.CheckoutUpdate(checkoutLookup, logg))
			r.Post("/open", checkoutcontrollers.CheckoutOpen(checkoutLookup, logg))
			r.Post("/close", checkoutcontrollers.CheckoutClose(checkoutLookup, logg))
			r.Post("/next", checkoutcontrollers.CheckoutNext(checkoutLookup, logg))
			r.Post("/back", checkoutcontrollers.CheckoutBack(checkoutLookup, logg))
			r.Post("/retry-shipping", checkoutcontrollers.CheckoutRetryShipping(checkoutLookup, logg))
			r.Post("/confirm", checkoutcontrollers.CheckoutConfirm(checkoutLookup, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersLookup, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.CancelOrder(ordersLookup, logg))
		})
	})

	return r
}
