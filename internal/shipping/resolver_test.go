package shipping

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// scriptedCalculator answers per city. Cities listed in gates block until released.
type scriptedCalculator struct {
	mu     sync.Mutex
	costs  map[string]decimal.Decimal
	errs   map[string]error
	gates  map[string]chan struct{}
	calls  []string
	active atomic.Int32
}

func newScripted() *scriptedCalculator {
	return &scriptedCalculator{
		costs: map[string]decimal.Decimal{},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
	}
}

func (s *scriptedCalculator) CalculateShipping(_ context.Context, req Request) (decimal.Decimal, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.City)
	gate := s.gates[req.City]
	cost, err := s.costs[req.City], s.errs[req.City]
	s.mu.Unlock()

	if gate != nil {
		s.active.Add(1)
		<-gate
		s.active.Add(-1)
	}
	return cost, err
}

func (s *scriptedCalculator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedCalculator) setErr(city string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[city] = err
}

func newTestResolver(t *testing.T, calc Calculator, debounce time.Duration) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverParams{Calculator: calc, Logger: logger.Nop(), Debounce: debounce, Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

var items = []cart.Item{{ProductID: "a", Quantity: 1}}

func settled(r *Resolver) func() bool {
	return func() bool {
		s := r.State()
		return !s.Pending && (s.Resolved || s.Err != nil)
	}
}

func TestPickupResolvesToZeroImmediately(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	r := newTestResolver(t, calc, 0)
	r.Resolve(items, "Lagos", enums.DeliveryMethodPickup)

	state := r.State()
	require.True(t, state.Resolved)
	require.False(t, state.Pending)
	require.True(t, state.Cost.IsZero())
	require.Zero(t, calc.callCount())
}

func TestShippingQuoteIsApplied(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["Lagos"] = decimal.NewFromInt(12)
	r := newTestResolver(t, calc, 0)

	r.Resolve(items, "Lagos", enums.DeliveryMethodShipping)
	require.True(t, r.State().Pending)
	require.Eventually(t, settled(r), waitFor, tick)
	require.True(t, r.State().Cost.Equal(decimal.NewFromInt(12)))
	require.NoError(t, r.State().Err)
}

func TestDebounceCollapsesBursts(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["Abuja"] = decimal.NewFromInt(7)
	r := newTestResolver(t, calc, 50*time.Millisecond)

	r.Resolve(items, "Ab", enums.DeliveryMethodShipping)
	r.Resolve(items, "Abu", enums.DeliveryMethodShipping)
	r.Resolve(items, "Abuja", enums.DeliveryMethodShipping)

	require.Eventually(t, settled(r), waitFor, tick)
	require.Equal(t, 1, calc.callCount())
	require.True(t, r.State().Cost.Equal(decimal.NewFromInt(7)))
}

func TestUnchangedInputsDoNotReissue(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["Lagos"] = decimal.NewFromInt(3)
	r := newTestResolver(t, calc, 0)

	r.Resolve([]cart.Item{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 2}}, "Lagos", enums.DeliveryMethodShipping)
	require.Eventually(t, settled(r), waitFor, tick)
	gen := r.State().Generation

	r.Resolve([]cart.Item{{ProductID: "b", Quantity: 2}, {ProductID: "a", Quantity: 1}}, " Lagos ", enums.DeliveryMethodShipping)
	require.Equal(t, gen, r.State().Generation)
	require.Equal(t, 1, calc.callCount())
}

func TestLatestInputsWinWhenResponsesArriveOutOfOrder(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["A"] = decimal.NewFromInt(10)
	calc.costs["B"] = decimal.NewFromInt(20)
	releaseA := make(chan struct{})
	calc.gates["A"] = releaseA
	r := newTestResolver(t, calc, 0)

	r.Resolve(items, "A", enums.DeliveryMethodShipping)
	require.Eventually(t, func() bool { return calc.active.Load() == 1 }, waitFor, tick)

	r.Resolve(items, "B", enums.DeliveryMethodShipping)
	require.Eventually(t, settled(r), waitFor, tick)
	require.True(t, r.State().Cost.Equal(decimal.NewFromInt(20)))

	close(releaseA)
	require.Eventually(t, func() bool { return calc.active.Load() == 0 }, waitFor, tick)
	// give the stale response a chance to land
	time.Sleep(20 * time.Millisecond)
	require.True(t, r.State().Cost.Equal(decimal.NewFromInt(20)))
}

func TestPickupDropsInFlightQuote(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["A"] = decimal.NewFromInt(10)
	release := make(chan struct{})
	calc.gates["A"] = release
	r := newTestResolver(t, calc, 0)

	r.Resolve(items, "A", enums.DeliveryMethodShipping)
	require.Eventually(t, func() bool { return calc.active.Load() == 1 }, waitFor, tick)
	r.Resolve(items, "A", enums.DeliveryMethodPickup)
	close(release)

	require.Eventually(t, func() bool { return calc.active.Load() == 0 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	state := r.State()
	require.Equal(t, enums.DeliveryMethodPickup, state.Method)
	require.True(t, state.Cost.IsZero())
}

func TestFailureKeepsPreviousCostAndRetryRecovers(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["Lagos"] = decimal.NewFromInt(5)
	calc.costs["Kano"] = decimal.NewFromInt(9)
	r := newTestResolver(t, calc, 0)

	r.Resolve(items, "Lagos", enums.DeliveryMethodShipping)
	require.Eventually(t, settled(r), waitFor, tick)

	calc.setErr("Kano", errors.New("upstream down"))
	r.Resolve(items, "Kano", enums.DeliveryMethodShipping)
	require.Eventually(t, func() bool { return r.State().Err != nil }, waitFor, tick)
	state := r.State()
	require.True(t, state.Cost.Equal(decimal.NewFromInt(5)))
	require.Equal(t, pkgerrors.CodeShippingFailed, pkgerrors.CodeOf(state.Err))
	require.False(t, state.Pending)

	calc.setErr("Kano", nil)
	r.Retry()
	require.Eventually(t, func() bool {
		s := r.State()
		return s.Err == nil && !s.Pending
	}, waitFor, tick)
	require.True(t, r.State().Cost.Equal(decimal.NewFromInt(9)))
}

func TestSwitchingToShippingStartsUnresolved(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	r := newTestResolver(t, calc, time.Hour)

	r.Resolve(items, "", enums.DeliveryMethodPickup)
	require.True(t, r.State().Resolved)

	r.Resolve(items, "", enums.DeliveryMethodShipping)
	state := r.State()
	require.False(t, state.Resolved)
	require.False(t, state.Pending)
	require.Zero(t, calc.callCount())
}

func TestOnUpdateObservesChanges(t *testing.T) {
	t.Parallel()

	calc := newScripted()
	calc.costs["Lagos"] = decimal.NewFromInt(4)
	r := newTestResolver(t, calc, 0)

	var (
		mu     sync.Mutex
		states []State
	)
	r.OnUpdate(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	r.Resolve(items, "Lagos", enums.DeliveryMethodShipping)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2 && states[len(states)-1].Resolved
	}, waitFor, tick)
}

func TestNewResolverValidates(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(ResolverParams{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = NewResolver(ResolverParams{Calculator: newScripted()})
	require.Error(t, err)
	_, err = NewResolver(ResolverParams{Calculator: newScripted(), Logger: logger.Nop(), Debounce: -time.Second})
	require.Error(t, err)
}
