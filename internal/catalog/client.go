package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/remote"
)

// Filters narrows ListProducts. The zero value lists the whole catalog.
type Filters struct {
	IDs []string
}

// Client is the remote catalog service.
type Client interface {
	ListProducts(ctx context.Context, filters Filters) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
}

type requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// HTTPClient talks to the catalog service over JSON.
type HTTPClient struct {
	remote requester
}

func NewHTTPClient(r *remote.Client) (*HTTPClient, error) {
	if r == nil {
		return nil, errors.New("remote client required")
	}
	return &HTTPClient{remote: r}, nil
}

type listProductsResponse struct {
	Items []Product `json:"items"`
}

func (c *HTTPClient) ListProducts(ctx context.Context, filters Filters) ([]Product, error) {
	query := url.Values{}
	if len(filters.IDs) > 0 {
		query.Set("ids", strings.Join(filters.IDs, ","))
	}
	var resp listProductsResponse
	if err := c.remote.Get(ctx, "/products", query, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return resp.Items, nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	var product Product
	if err := c.remote.Get(ctx, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		var statusErr *remote.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get product")
	}
	return &product, nil
}
