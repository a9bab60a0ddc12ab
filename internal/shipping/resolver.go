package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 5 * time.Second

// State is the resolver's view of the shipping cost.
type State struct {
	Method enums.DeliveryMethod `json:"method,omitempty"`
	Cost   decimal.Decimal      `json:"cost"`
	// Resolved is true once a quote succeeded for the current delivery session.
	Resolved   bool   `json:"resolved"`
	Pending    bool   `json:"pending"`
	Err        error  `json:"-"`
	Generation uint64 `json:"generation"`
}

// ResolverParams wire a Resolver.
type ResolverParams struct {
	Calculator Calculator
	Logger     *logger.Logger
	Metrics    *metrics.ShippingMetrics
	Debounce   time.Duration
	Timeout    time.Duration
}

// Resolver keeps the shipping cost in step with the cart and destination.
// Inputs are debounced, and every scheduled quote carries a generation; only
// the newest generation may update the state, so a slow response for old
// inputs can never overwrite a newer one.
type Resolver struct {
	calc     Calculator
	logg     *logger.Logger
	metrics  *metrics.ShippingMetrics
	debounce time.Duration
	timeout  time.Duration

	mu         sync.Mutex
	state      State
	key        string
	req        Request
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	listeners  []func(State)
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Calculator == nil {
		return nil, fmt.Errorf("shipping calculator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Debounce < 0 {
		return nil, fmt.Errorf("debounce must not be negative")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		calc:     params.Calculator,
		logg:     params.Logger,
		metrics:  params.Metrics,
		debounce: params.Debounce,
		timeout:  timeout,
		state:    State{Cost: decimal.Zero},
	}, nil
}

// OnUpdate registers fn to observe every state change. fn runs outside the resolver lock.
func (r *Resolver) OnUpdate(fn func(State)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Resolve reports new inputs. Pickup costs nothing and settles immediately.
// Shipping schedules a debounced quote unless the inputs match the last ones.
func (r *Resolver) Resolve(items []cart.Item, city string, method enums.DeliveryMethod) {
	r.mu.Lock()
	if method != enums.DeliveryMethodShipping {
		r.stopLocked()
		r.generation++
		r.key = ""
		r.state = State{Method: method, Cost: decimal.Zero, Resolved: true, Generation: r.generation}
		r.publishLocked()
		return
	}

	if r.state.Method != enums.DeliveryMethodShipping {
		r.stopLocked()
		r.generation++
		r.key = ""
		r.state = State{Method: method, Cost: decimal.Zero, Generation: r.generation}
	}

	city = strings.TrimSpace(city)
	key := inputKey(items, city)
	if key == r.key {
		r.mu.Unlock()
		return
	}
	r.key = key
	r.req = Request{Items: sortedItems(items), City: city}
	if city == "" {
		// nothing to quote until a destination is known
		r.stopLocked()
		r.generation++
		r.state.Pending = false
		r.state.Generation = r.generation
		r.publishLocked()
		return
	}
	r.scheduleLocked(r.debounce)
	r.publishLocked()
}

// Retry reissues the quote for the latest inputs without waiting for the debounce.
func (r *Resolver) Retry() {
	r.mu.Lock()
	if r.state.Method != enums.DeliveryMethodShipping || r.req.City == "" {
		r.mu.Unlock()
		return
	}
	r.scheduleLocked(0)
	r.publishLocked()
}

// Reset cancels any outstanding work and forgets all inputs.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.stopLocked()
	r.generation++
	r.key = ""
	r.req = Request{}
	r.state = State{Cost: decimal.Zero, Generation: r.generation}
	r.mu.Unlock()
}

// Close stops timers and in-flight requests. Pending results are discarded.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.stopLocked()
	r.generation++
	r.mu.Unlock()
}

func (r *Resolver) scheduleLocked(delay time.Duration) {
	r.stopLocked()
	r.generation++
	gen := r.generation
	r.state.Pending = true
	r.state.Generation = gen
	r.timer = time.AfterFunc(delay, func() { r.issue(gen) })
}

func (r *Resolver) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resolver) issue(gen uint64) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	r.cancel = cancel
	req := Request{Items: cloneItems(r.req.Items), City: r.req.City}
	r.mu.Unlock()

	r.metrics.Inc(metrics.ShippingIssued)
	cost, err := r.calc.CalculateShipping(ctx, req)
	cancel()

	logCtx := r.logg.WithFields(context.Background(), map[string]any{
		"generation": gen,
		"city":       req.City,
	})

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		r.metrics.Inc(metrics.ShippingDiscarded)
		r.logg.Debug(logCtx, "discarded superseded shipping quote")
		return
	}
	r.cancel = nil
	r.state.Pending = false
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("shipping quote timed out after %s: %w", r.timeout, err)
		}
		r.state.Err = pkgerrors.Wrap(pkgerrors.CodeShippingFailed, err, "could not calculate shipping")
		r.metrics.Inc(metrics.ShippingFailed)
		r.logg.Warn(logCtx, "shipping quote failed")
	} else {
		r.state.Cost = cost
		r.state.Resolved = true
		r.state.Err = nil
		r.metrics.Inc(metrics.ShippingApplied)
	}
	r.publishLocked()
}

// publishLocked releases the lock and notifies listeners of the state it held.
func (r *Resolver) publishLocked() {
	state := r.state
	listeners := append([]func(State){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

// inputKey identifies a quote input independent of line order.
func inputKey(items []cart.Item, city string) string {
	var b strings.Builder
	for _, it := range sortedItems(items) {
		fmt.Fprintf(&b, "%s=%d;", it.ProductID, it.Quantity)
	}
	b.WriteString("@")
	b.WriteString(strings.ToLower(city))
	return b.String()
}

func sortedItems(items []cart.Item) []cart.Item {
	out := cloneItems(items)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func cloneItems(items []cart.Item) []cart.Item {
	out := make([]cart.Item, len(items))
	copy(out, items)
	return out
}
