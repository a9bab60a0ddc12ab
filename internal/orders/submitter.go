package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

const defaultSubmitTimeout = 10 * time.Second

// CatalogRefresher refetches the shared catalog snapshot.
type CatalogRefresher interface {
	Refresh(ctx context.Context) (*catalog.Snapshot, error)
}

// CartClearer empties the buyer's cart after a successful order.
type CartClearer interface {
	Clear(ctx context.Context) error
}

// HistoryRefresher reloads the buyer's order list.
type HistoryRefresher interface {
	Refresh(ctx context.Context) error
}

// SubmitterParams wire a Submitter.
type SubmitterParams struct {
	Client  Client
	Catalog CatalogRefresher
	Events  EventPublisher
	Logger  *logger.Logger
	Metrics *metrics.OrderMetrics
	Timeout time.Duration
	Now     func() time.Time
}

// Submitter places and cancels orders and keeps the dependent views fresh.
type Submitter struct {
	client  Client
	catalog CatalogRefresher
	events  EventPublisher
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
	timeout time.Duration
	now     func() time.Time
}

func NewSubmitter(params SubmitterParams) (*Submitter, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("orders client required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog refresher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	events := params.Events
	if events == nil {
		events = NopPublisher{}
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Submitter{
		client:  params.Client,
		catalog: params.Catalog,
		events:  events,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
		now:     now,
	}, nil
}

// SubmitInput is one confirmation attempt.
type SubmitInput struct {
	Order          CreateOrderRequest
	IdempotencyKey string
	Cart           CartClearer
	History        HistoryRefresher
}

// Submit places the order with exactly one CreateOrder call. The call is
// detached from ctx cancellation so an abandoned request cannot leave the
// order in an unknown state; it is bounded by the submit timeout instead.
//
// On failure the cart is untouched, the catalog is refreshed so the buyer sees
// current stock, and a SUBMISSION_FAILED error carries a readable reason.
func (s *Submitter) Submit(ctx context.Context, in SubmitInput) (*Receipt, error) {
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if len(in.Order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	ctx = s.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"identity":        in.Order.BuyerIdentity,
		"idempotency_key": in.IdempotencyKey,
	})
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	order, err := s.client.CreateOrder(callCtx, in.IdempotencyKey, in.Order)
	cancel()
	if err != nil {
		s.metrics.IncSubmission("failure")
		s.logg.Error(ctx, "order submission failed", err)
		s.refreshCatalog(ctx)
		reason := failureReason(err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, reason).WithDetails(map[string]any{"reason": reason})
	}

	ctx = s.logg.WithOrderID(ctx, order.ID)
	receipt := &Receipt{
		OrderID:  order.ID,
		Status:   order.Status,
		Total:    order.Total,
		PlacedAt: s.now().UTC(),
	}
	if !order.CreatedAt.IsZero() {
		receipt.PlacedAt = order.CreatedAt
	}
	if in.Cart != nil {
		if err := in.Cart.Clear(ctx); err != nil {
			s.logg.Error(ctx, "order placed but cart could not be cleared", err)
		} else {
			receipt.CartCleared = true
		}
	}
	s.refreshCatalog(ctx)
	s.refreshHistory(ctx, in.History)

	itemCount := 0
	for _, line := range in.Order.Items {
		itemCount += line.Quantity
	}
	if err := s.events.PublishOrderPlaced(ctx, OrderPlaced{
		OrderID:        order.ID,
		BuyerIdentity:  in.Order.BuyerIdentity,
		Total:          order.Total,
		DeliveryMethod: in.Order.DeliveryMethod,
		ItemCount:      itemCount,
		PlacedAt:       receipt.PlacedAt,
	}); err != nil {
		s.logg.Error(ctx, "failed to publish order placed event", err)
	}

	s.metrics.IncSubmission("success")
	s.logg.Info(ctx, "order placed")
	return receipt, nil
}

// Cancel asks the order service to cancel orderID. On success the catalog and
// history are refreshed since released stock and order status changed.
func (s *Submitter) Cancel(ctx context.Context, identity, orderID string, history HistoryRefresher) (*CancelResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(s.logg.WithIdentity(ctx, identity), orderID)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.client.CancelOrder(callCtx, identity, orderID)
	cancel()
	if err != nil {
		s.metrics.IncCancellation("failure")
		s.logg.Error(ctx, "order cancellation failed", err)
		return nil, pkgerrors.Wrap(cancelCode(err), err, "cancel order")
	}
	s.refreshCatalog(ctx)
	s.refreshHistory(ctx, history)
	s.metrics.IncCancellation("success")
	s.logg.Info(ctx, "order cancelled")
	return result, nil
}

func (s *Submitter) refreshCatalog(ctx context.Context) {
	if _, err := s.catalog.Refresh(ctx); err != nil {
		s.logg.Error(ctx, "catalog refresh after order failed", err)
	}
}

func (s *Submitter) refreshHistory(ctx context.Context, history HistoryRefresher) {
	if history == nil {
		return
	}
	if err := history.Refresh(ctx); err != nil {
		s.logg.Error(ctx, "order history refresh failed", err)
	}
}
