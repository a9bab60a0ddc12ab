package orders

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/pagination"
	"github.com/angelmondragon/packfinderz-storefront/pkg/remote"
)

// Client is the remote order service.
type Client interface {
	CreateOrder(ctx context.Context, idempotencyKey string, req CreateOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, identity, orderID string) (*CancelResult, error)
	ListMyOrders(ctx context.Context, identity string, params pagination.Params) (*pagination.Page[Order], error)
}

type requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// HTTPClient talks to the order service over JSON.
type HTTPClient struct {
	remote requester
}

func NewHTTPClient(r *remote.Client) (*HTTPClient, error) {
	if r == nil {
		return nil, errors.New("remote client required")
	}
	return &HTTPClient{remote: r}, nil
}

// CreateOrder forwards idempotencyKey so a retried confirmation maps to the same order.
func (c *HTTPClient) CreateOrder(ctx context.Context, idempotencyKey string, req CreateOrderRequest) (*Order, error) {
	var order Order
	if err := c.remote.Post(remote.WithIdempotencyKey(ctx, idempotencyKey), "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

type cancelRequest struct {
	BuyerIdentity string `json:"buyer_identity"`
}

func (c *HTTPClient) CancelOrder(ctx context.Context, identity, orderID string) (*CancelResult, error) {
	var result CancelResult
	path := "/orders/" + url.PathEscape(orderID) + "/cancel"
	if err := c.remote.Post(ctx, path, cancelRequest{BuyerIdentity: identity}, &result); err != nil {
		return nil, err
	}
	if result.OrderID == "" {
		result.OrderID = orderID
	}
	return &result, nil
}

func (c *HTTPClient) ListMyOrders(ctx context.Context, identity string, params pagination.Params) (*pagination.Page[Order], error) {
	params = params.Normalize()
	query := url.Values{}
	query.Set("buyer", identity)
	query.Set("limit", strconv.Itoa(params.Limit))
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}
	var page pagination.Page[Order]
	if err := c.remote.Get(ctx, "/orders", query, &page); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &page, nil
}

// failureReason turns an upstream failure into a message fit for the buyer.
func failureReason(err error) string {
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" && !statusErr.Temporary() {
		return statusErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the order service did not respond in time, please try again"
	}
	return "the order could not be placed, please try again"
}

func cancelCode(err error) pkgerrors.Code {
	var statusErr *remote.StatusError
	if !errors.As(err, &statusErr) {
		return pkgerrors.CodeDependency
	}
	switch statusErr.StatusCode {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	}
	if statusErr.Temporary() {
		return pkgerrors.CodeDependency
	}
	return pkgerrors.CodeValidation
}
