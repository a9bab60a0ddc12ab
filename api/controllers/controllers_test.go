package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthLive(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "dev", resp.Header().Get("X-Storefront-Env"))
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	deps := map[string]Pinger{
		"db":     pingerFunc(func(context.Context) error { return nil }),
		"redis":  pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		"pubsub": nil,
	}
	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Checks map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, string(pkgerrors.CodeDependency), body.Error.Code)
	require.Equal(t, map[string]string{"db": "up", "redis": "down"}, body.Error.Details.Checks)
}

func TestHealthReadyAllUp(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	deps := map[string]Pinger{"db": pingerFunc(func(context.Context) error { return nil })}
	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.Code)
}

type stubCatalog struct {
	snap    *catalog.Snapshot
	err     error
	product *catalog.Product
}

func (s *stubCatalog) Refresh(context.Context) (*catalog.Snapshot, error) { return s.snap, s.err }

func (s *stubCatalog) Product(_ context.Context, id string) (*catalog.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.product, nil
}

func TestCatalogRefresh(t *testing.T) {
	t.Parallel()
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := catalog.NewSnapshot([]catalog.Product{
		{ID: "X", Price: decimal.NewFromInt(10), PurchaseLimitPerBuyer: 2},
		{ID: "bad", Price: decimal.NewFromInt(1), PurchaseLimitPerBuyer: 0},
	}, fetched)

	resp := httptest.NewRecorder()
	CatalogRefresh(&stubCatalog{snap: snap}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data catalogRefreshResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, 1, envelope.Data.Products)
	require.Equal(t, 1, envelope.Data.Rejected)
	require.True(t, envelope.Data.FetchedAt.Equal(fetched))
}

func TestCatalogRefreshFailure(t *testing.T) {
	t.Parallel()
	svc := &stubCatalog{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "refresh catalog")}
	resp := httptest.NewRecorder()
	CatalogRefresh(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestCatalogProduct(t *testing.T) {
	t.Parallel()
	svc := &stubCatalog{product: &catalog.Product{ID: "X", Name: "Widget", Price: decimal.NewFromInt(10), PurchaseLimitPerBuyer: 2}}
	r := chi.NewRouter()
	r.Get("/api/v1/catalog/products/{productId}", CatalogProduct(svc, nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/X", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/Y", nil))
	require.Equal(t, http.StatusNotFound, resp.Code)
}
