package storefront

import (
	"context"
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/shipping"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Session is one identity's cart, checkout and order history. Cart mutations
// go through the session so checkout sees every change.
type Session struct {
	identity  string
	cart      *cart.Engine
	shipping  *shipping.Resolver
	checkout  *checkout.Workflow
	history   *orders.History
	submitter *orders.Submitter
	logg      *logger.Logger

	mu sync.Mutex
	// pending collects load and revalidation changes until the buyer next
	// edits the cart.
	pending cart.Reconciliation
}

func (s *Session) Identity() string { return s.identity }

func (s *Session) Checkout() *checkout.Workflow { return s.checkout }

func (s *Session) History() *orders.History { return s.history }

// Reconciliation is what load and catalog revalidation changed since the
// buyer last edited the cart.
func (s *Session) Reconciliation() cart.Reconciliation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Cart() cart.Summary { return s.cart.Summary() }

// CartView is the cart with any pending reconciliation notices.
func (s *Session) CartView() cart.View {
	return cart.View{Summary: s.cart.Summary(), Notices: s.Reconciliation().Notices()}
}

func (s *Session) Add(ctx context.Context, productID string, qty int, silent bool) (cart.Outcome, error) {
	return s.changed(ctx)(s.cart.Add(ctx, productID, qty, silent))
}

func (s *Session) Decrease(ctx context.Context, productID string) (cart.Outcome, error) {
	return s.changed(ctx)(s.cart.Decrease(ctx, productID))
}

func (s *Session) SetQuantity(ctx context.Context, productID string, delta int) (cart.Outcome, error) {
	return s.changed(ctx)(s.cart.SetQuantity(ctx, productID, delta))
}

func (s *Session) Remove(ctx context.Context, productID string) (cart.Outcome, error) {
	return s.changed(ctx)(s.cart.Remove(ctx, productID))
}

func (s *Session) Clear(ctx context.Context) error {
	if err := s.cart.Clear(ctx); err != nil {
		return err
	}
	s.acknowledge()
	s.checkout.CartChanged(ctx)
	return nil
}

// Orders reloads the first page of the identity's orders, or appends the
// next page when loadMore is set.
func (s *Session) Orders(ctx context.Context, loadMore bool) ([]orders.Order, bool, error) {
	var err error
	if loadMore {
		err = s.history.LoadMore(ctx)
	} else {
		err = s.history.Refresh(ctx)
	}
	if err != nil {
		return nil, false, err
	}
	return s.history.Items(), s.history.HasMore(), nil
}

// CancelOrder cancels one of the identity's orders.
func (s *Session) CancelOrder(ctx context.Context, orderID string) (*orders.CancelResult, error) {
	return s.submitter.Cancel(ctx, s.identity, orderID, s.history)
}

func (s *Session) changed(ctx context.Context) func(cart.Outcome, error) (cart.Outcome, error) {
	return func(out cart.Outcome, err error) (cart.Outcome, error) {
		if err == nil && out.Applied() {
			s.acknowledge()
			s.checkout.CartChanged(ctx)
		}
		return out, err
	}
}

func (s *Session) record(rec cart.Reconciliation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.pending.Merge(rec)
}

// acknowledge drops pending notices once a mutation has been saved, keeping
// only a still-deferred check.
func (s *Session) acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = cart.Reconciliation{Persisted: true, Deferred: s.pending.Deferred}
}

func (s *Session) revalidate(ctx context.Context) {
	ctx = s.logg.WithIdentity(ctx, s.identity)
	rec, err := s.cart.Revalidate(ctx)
	if err != nil {
		s.logg.Error(ctx, "failed to revalidate cart after catalog refresh", err)
		return
	}
	s.record(rec)
	s.checkout.Reconciled(ctx, rec)
}
