package shipping

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/remote"
	"github.com/shopspring/decimal"
)

// Request is one shipping quote input.
type Request struct {
	Items []cart.Item `json:"items"`
	City  string      `json:"city"`
}

// Calculator quotes the shipping cost for a cart composition and destination.
type Calculator interface {
	CalculateShipping(ctx context.Context, req Request) (decimal.Decimal, error)
}

type poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

// HTTPCalculator asks the shipping service for a quote.
type HTTPCalculator struct {
	remote poster
}

func NewHTTPCalculator(r *remote.Client) (*HTTPCalculator, error) {
	if r == nil {
		return nil, errors.New("remote client required")
	}
	return &HTTPCalculator{remote: r}, nil
}

type quoteResponse struct {
	Cost decimal.Decimal `json:"cost"`
}

func (c *HTTPCalculator) CalculateShipping(ctx context.Context, req Request) (decimal.Decimal, error) {
	if strings.TrimSpace(req.City) == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "destination city is required")
	}
	var resp quoteResponse
	if err := c.remote.Post(ctx, "/shipping/quote", req, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Cost.IsNegative() {
		return decimal.Zero, errors.New("shipping service returned a negative cost")
	}
	return resp.Cost, nil
}
