package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

// EngineParams wire an Engine.
type EngineParams struct {
	Store   Store
	Catalog catalog.Source
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
	Now     func() time.Time
}

// Engine owns one identity's cart. Every mutation computes the next item list,
// persists it, and only then makes it current, so the in-memory cart never
// drifts from the last successful save.
type Engine struct {
	store   Store
	catalog catalog.Source
	logg    *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time

	mu       sync.Mutex
	identity string
	items    []Item
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:   params.Store,
		catalog: params.Catalog,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// Identity returns the identity whose cart is loaded.
func (e *Engine) Identity() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// Load switches to identity, prunes lines whose product no longer resolves,
// clamps quantities into range and merges duplicate rows. A changed cart is
// written back right away.
func (e *Engine) Load(ctx context.Context, identity string) (Reconciliation, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Reconciliation{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.logg.WithIdentity(ctx, identity)
	stored, err := e.store.Load(ctx, identity)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		stored = nil
	case err != nil:
		e.identity, e.items = "", nil
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	e.identity = identity
	e.items = nil
	return e.reconcileLocked(ctx, stored), nil
}

// Revalidate reapplies the load rules against the current catalog snapshot.
func (e *Engine) Revalidate(ctx context.Context) (Reconciliation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == "" {
		return Reconciliation{}, errNotLoaded()
	}
	ctx = e.logg.WithIdentity(ctx, e.identity)
	return e.reconcileLocked(ctx, e.items), nil
}

func (e *Engine) reconcileLocked(ctx context.Context, stored []Item) Reconciliation {
	snap := e.catalog.Current()
	if snap.FetchedAt().IsZero() {
		// No catalog has been fetched yet, so every line would look unresolvable.
		// Keep the stored lines untouched; the first refresh revalidates them.
		e.items = cloneItems(stored)
		e.logg.Warn(e.logg.WithField(ctx, "items", len(stored)), "catalog not loaded, cart reconciliation deferred")
		return Reconciliation{Persisted: true, Deferred: true}
	}

	next, rec := reconcile(stored, snap, e.now())
	if !rec.Changed() {
		e.items = next
		rec.Persisted = true
		return rec
	}

	e.metrics.AddPruned(len(rec.Dropped))
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"dropped":  len(rec.Dropped),
		"adjusted": len(rec.Adjusted),
		"merged":   rec.Merged,
	})
	if err := e.store.Save(ctx, e.identity, next); err != nil {
		// the pruned view is still what the buyer sees; the stale record is pruned again next load
		e.logg.Error(logCtx, "failed to persist reconciled cart", err)
	} else {
		rec.Persisted = true
	}
	e.items = next
	e.logg.Info(logCtx, "cart reconciled against catalog")
	return rec
}

// Add puts qty units of productID in the cart. The whole request is rejected,
// never clamped, when it would exceed the purchase limit or available stock.
func (e *Engine) Add(ctx context.Context, productID string, qty int, silent bool) (Outcome, error) {
	return e.mutate(ctx, "add", func(items []Item, snap *catalog.Snapshot, now time.Time) ([]Item, Outcome) {
		return applyAdd(items, snap, now, productID, qty, silent)
	})
}

// Decrease removes one unit, dropping the line instead of storing zero.
func (e *Engine) Decrease(ctx context.Context, productID string) (Outcome, error) {
	return e.mutate(ctx, "decrease", func(items []Item, _ *catalog.Snapshot, _ time.Time) ([]Item, Outcome) {
		return applyDecrease(items, productID)
	})
}

// SetQuantity moves a line by delta, clamped into [1, purchase limit].
func (e *Engine) SetQuantity(ctx context.Context, productID string, delta int) (Outcome, error) {
	return e.mutate(ctx, "set_quantity", func(items []Item, snap *catalog.Snapshot, now time.Time) ([]Item, Outcome) {
		return applySetQuantity(items, snap, now, productID, delta)
	})
}

// Remove deletes the line for productID.
func (e *Engine) Remove(ctx context.Context, productID string) (Outcome, error) {
	return e.mutate(ctx, "remove", func(items []Item, _ *catalog.Snapshot, _ time.Time) ([]Item, Outcome) {
		return applyRemove(items, productID)
	})
}

// Clear empties the cart and deletes the persisted record. Clearing an empty cart is a no-op.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == "" {
		return errNotLoaded()
	}
	ctx = e.logg.WithIdentity(ctx, e.identity)
	if err := e.store.Delete(ctx, e.identity); err != nil {
		e.metrics.IncMutation("clear", "persistence_failure")
		e.logg.Error(ctx, "failed to delete cart record", err)
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clear cart")
	}
	e.items = nil
	e.metrics.IncMutation("clear", enums.CartOutcomeApplied.String())
	return nil
}

type command func(items []Item, snap *catalog.Snapshot, now time.Time) ([]Item, Outcome)

func (e *Engine) mutate(ctx context.Context, op string, cmd command) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == "" {
		return Outcome{}, errNotLoaded()
	}
	ctx = e.logg.WithIdentity(ctx, e.identity)

	next, outcome := cmd(cloneItems(e.items), e.catalog.Current(), e.now())
	if outcome.Status != enums.CartOutcomeApplied || itemsEqual(next, e.items) {
		e.metrics.IncMutation(op, outcome.Status.String())
		return outcome, nil
	}

	if err := e.store.Save(ctx, e.identity, next); err != nil {
		e.metrics.IncMutation(op, "persistence_failure")
		logCtx := e.logg.WithFields(ctx, map[string]any{"op": op, "product_id": outcome.ProductID})
		e.logg.Error(logCtx, "failed to persist cart mutation", err)
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save cart")
	}
	e.items = next
	e.metrics.IncMutation(op, outcome.Status.String())
	return outcome, nil
}

// Items returns a copy of the current lines.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneItems(e.items)
}

// Total sums quantity times live price over resolvable lines.
func (e *Engine) Total() decimal.Decimal {
	return e.Summary().Total
}

func (e *Engine) Summary() Summary {
	e.mu.Lock()
	items := cloneItems(e.items)
	e.mu.Unlock()
	return Summarize(items, e.catalog.Current(), e.now())
}

// Summarize prices items against snap. Unresolvable lines are listed at zero.
func Summarize(items []Item, snap *catalog.Snapshot, now time.Time) Summary {
	summary := Summary{Items: make([]Line, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		line := Line{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
		if p, ok := snap.Lookup(it.ProductID, now); ok {
			line.Name = p.Name
			line.UnitPrice = p.Price
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			line.Resolvable = true
			summary.Total = summary.Total.Add(line.LineTotal)
		}
		summary.ItemCount += it.Quantity
		summary.Items = append(summary.Items, line)
	}
	return summary
}

func errNotLoaded() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart has no identity loaded")
}
