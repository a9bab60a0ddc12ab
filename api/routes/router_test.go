package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-storefront/api/controllers"
	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/paymentmethods"
	"github.com/angelmondragon/packfinderz-storefront/internal/shipping"
	"github.com/angelmondragon/packfinderz-storefront/internal/storefront"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/pagination"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type catalogClient struct {
	products []catalog.Product
}

func (c *catalogClient) ListProducts(context.Context, catalog.Filters) ([]catalog.Product, error) {
	return c.products, nil
}

func (c *catalogClient) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, fmt.Errorf("product %s not found", id)
}

type flatShipping struct{}

func (flatShipping) CalculateShipping(context.Context, shipping.Request) (decimal.Decimal, error) {
	return decimal.NewFromInt(7), nil
}

type ordersClient struct {
	mu      sync.Mutex
	creates int
	keys    []string
}

func (o *ordersClient) CreateOrder(_ context.Context, key string, req orders.CreateOrderRequest) (*orders.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.creates++
	o.keys = append(o.keys, key)
	return &orders.Order{ID: fmt.Sprintf("ord-%d", o.creates), Status: "placed", Total: req.Total, CreatedAt: testNow}, nil
}

func (o *ordersClient) CancelOrder(_ context.Context, _ string, orderID string) (*orders.CancelResult, error) {
	return &orders.CancelResult{OrderID: orderID, Status: "cancelled"}, nil
}

func (o *ordersClient) ListMyOrders(context.Context, string, pagination.Params) (*pagination.Page[orders.Order], error) {
	return &pagination.Page[orders.Order]{Items: []orders.Order{{ID: "ord-1", Status: "placed"}}}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

type harness struct {
	handler http.Handler
	orders  *ordersClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	now := func() time.Time { return testNow }
	logg := logger.Nop()

	svc, err := catalog.NewService(&catalogClient{products: []catalog.Product{
		{ID: "X", Name: "X", Price: decimal.NewFromInt(10), PurchaseLimitPerBuyer: 2},
		{ID: "Y", Name: "Y", Price: decimal.NewFromInt(5), PurchaseLimitPerBuyer: 3},
	}}, logg, now)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)

	oc := &ordersClient{}
	submitter, err := orders.NewSubmitter(orders.SubmitterParams{Client: oc, Catalog: svc, Logger: logg, Now: now})
	require.NoError(t, err)

	registry, err := storefront.NewRegistry(storefront.RegistryParams{
		Store:      cart.NewMemoryStore(),
		Catalog:    svc,
		Payments:   paymentmethods.NewStaticSource(paymentmethods.Method{ID: "cod", Name: "Cash", CashOnDelivery: true}),
		Calculator: flatShipping{},
		Submitter:  submitter,
		Orders:     oc,
		Logger:     logg,
		Now:        now,
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	handler := NewRouter(Params{
		Config:      &config.Config{App: config.AppConfig{Env: "dev"}},
		Logger:      logg,
		Sessions:    registry,
		Catalog:     svc,
		Idempotency: &memoryIdempotency{data: map[string]string{}},
		Readiness:   map[string]controllers.Pinger{"db": stubPinger{}},
	})
	return &harness{handler: handler, orders: oc}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(middleware.IdentityHeader, "alice")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)

	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	h.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAPIRequiresIdentity(t *testing.T) {
	h := newHarness(t)
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLimitScenarioOverHTTP(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		resp := h.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"X","quantity":1}`, nil)
		require.Equal(t, http.StatusOK, resp.Code)
	}
	resp := h.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"X","quantity":1}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data struct {
			Outcome cart.Outcome `json:"outcome"`
			Cart    cart.Summary `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, enums.CartOutcomeLimitExceeded, envelope.Data.Outcome.Status)
	require.NotNil(t, envelope.Data.Outcome.Notice)
	require.Equal(t, 2, envelope.Data.Cart.ItemCount)
}

func TestCheckoutConfirmOverHTTPIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"X","quantity":2}`, nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":"Y","quantity":3}`, nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/checkout/open", "", nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPatch, "/api/v1/checkout", `{"delivery_method":"pickup","payment_method_id":"cod"}`, nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/checkout/next", "", nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/checkout/next", "", nil).Code)

	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/checkout/confirm", "", nil).Code)

	headers := map[string]string{"Idempotency-Key": "confirm-1"}
	first := h.do(t, http.MethodPost, "/api/v1/checkout/confirm", "", headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	var envelope struct {
		Data orders.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &envelope))
	require.Equal(t, "ord-1", envelope.Data.OrderID)
	require.True(t, envelope.Data.Total.Equal(decimal.NewFromInt(35)))
	require.True(t, envelope.Data.CartCleared)

	replay := h.do(t, http.MethodPost, "/api/v1/checkout/confirm", "", headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, first.Body.String(), replay.Body.String())
	require.Equal(t, 1, h.orders.creates)

	cartResp := h.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, cartResp.Code)
	require.Contains(t, cartResp.Body.String(), `"item_count":0`)
}

func TestOrdersRoutes(t *testing.T) {
	h := newHarness(t)

	list := h.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), `"ord-1"`)

	cancel := h.do(t, http.MethodPost, "/api/v1/orders/ord-1/cancel", "", map[string]string{"Idempotency-Key": "cancel-1"})
	require.Equal(t, http.StatusOK, cancel.Code)
}
