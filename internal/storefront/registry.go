package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/paymentmethods"
	"github.com/angelmondragon/packfinderz-storefront/internal/shipping"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// RegistryParams wire the per-identity sessions.
type RegistryParams struct {
	Store           cart.Store
	Catalog         catalog.Service
	Payments        paymentmethods.ActiveSource
	Calculator      shipping.Calculator
	Submitter       *orders.Submitter
	Orders          orders.Client
	Logger          *logger.Logger
	CartMetrics     *metrics.CartMetrics
	ShippingMetrics *metrics.ShippingMetrics
	Debounce        time.Duration
	ShippingTimeout time.Duration
	HistoryPageSize int
	Now             func() time.Time
}

// Registry hands out one Session per identity, so carts never leak between
// identities and every identity's mutations are serialized by its own engine.
type Registry struct {
	params RegistryParams

	opening singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	switch {
	case params.Store == nil:
		return nil, fmt.Errorf("cart store required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment method source required")
	case params.Calculator == nil:
		return nil, fmt.Errorf("shipping calculator required")
	case params.Submitter == nil:
		return nil, fmt.Errorf("order submitter required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders client required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	r := &Registry{params: params, sessions: make(map[string]*Session)}
	params.Catalog.OnRefresh(r.revalidateAll)
	return r, nil
}

// Session returns the identity's session, loading its cart on first use.
func (r *Registry) Session(ctx context.Context, identity string) (*Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}

	if s, ok := r.lookup(identity); ok {
		return s, nil
	}

	// The store is read outside r.mu; concurrent first requests for one
	// identity share a single load.
	v, err, _ := r.opening.Do(identity, func() (any, error) {
		if s, ok := r.lookup(identity); ok {
			return s, nil
		}
		ctx := context.WithoutCancel(ctx)
		before := r.params.Catalog.Current()
		s, err := r.open(ctx, identity)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[identity] = s
		r.mu.Unlock()
		if r.params.Catalog.Current() != before {
			// a refresh landed while the cart was loading and missed this session
			s.revalidate(ctx)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) lookup(identity string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[identity]
	return s, ok
}

func (r *Registry) open(ctx context.Context, identity string) (*Session, error) {
	p := r.params
	engine, err := cart.NewEngine(cart.EngineParams{
		Store:   p.Store,
		Catalog: p.Catalog,
		Logger:  p.Logger,
		Metrics: p.CartMetrics,
		Now:     p.Now,
	})
	if err != nil {
		return nil, err
	}
	loaded, err := engine.Load(ctx, identity)
	if err != nil {
		return nil, err
	}

	resolver, err := shipping.NewResolver(shipping.ResolverParams{
		Calculator: p.Calculator,
		Logger:     p.Logger,
		Metrics:    p.ShippingMetrics,
		Debounce:   p.Debounce,
		Timeout:    p.ShippingTimeout,
	})
	if err != nil {
		return nil, err
	}
	history, err := orders.NewHistory(p.Orders, identity, p.HistoryPageSize)
	if err != nil {
		resolver.Close()
		return nil, err
	}
	workflow, err := checkout.NewWorkflow(checkout.WorkflowParams{
		Cart:      engine,
		Catalog:   p.Catalog,
		Payments:  p.Payments,
		Shipping:  resolver,
		Submitter: p.Submitter,
		History:   history,
		Logger:    p.Logger,
		Now:       p.Now,
	})
	if err != nil {
		resolver.Close()
		return nil, err
	}

	return &Session{
		identity:  identity,
		cart:      engine,
		shipping:  resolver,
		checkout:  workflow,
		history:   history,
		submitter: p.Submitter,
		logg:      p.Logger,
		pending:   loaded,
	}, nil
}

// Evict drops an identity's session; its cart stays in the store.
func (r *Registry) Evict(identity string) {
	r.mu.Lock()
	s, ok := r.sessions[identity]
	delete(r.sessions, identity)
	r.mu.Unlock()
	if ok {
		s.shipping.Close()
	}
}

// Close stops every session's background shipping work.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.shipping.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// revalidateAll prunes every open cart against a freshly refreshed catalog.
func (r *Registry) revalidateAll(ctx context.Context, _ *catalog.Snapshot) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.revalidate(ctx)
	}
}
