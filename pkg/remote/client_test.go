package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
)

func TestDoDecodesJSONAndForwardsIdempotencyKey(t *testing.T) {
	t.Parallel()

	var gotKey, gotContentType, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"o-1"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Options{Name: "orders", BaseURL: srv.URL + "/v1/", Timeout: time.Second})
	require.NoError(t, err)

	var out struct {
		OrderID string `json:"order_id"`
	}
	ctx := WithIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, client.Post(ctx, "orders", map[string]int{"qty": 1}, &out))
	require.Equal(t, "o-1", out.OrderID)
	require.Equal(t, "key-1", gotKey)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "/v1/orders", gotPath)
}

func TestDoReturnsStatusErrorWithUpstreamMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"OUT_OF_STOCK","message":"stock exhausted"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Options{Name: "orders", BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/orders", nil, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusConflict, statusErr.StatusCode)
	require.Equal(t, "stock exhausted", statusErr.Message)
	require.False(t, statusErr.Temporary())
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Options{
		Name:    "shipping",
		BaseURL: srv.URL,
		Breaker: config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute},
	})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, client.Get(ctx, "/quote", nil, nil))
	}
	require.EqualValues(t, 3, calls.Load(), "client errors must not open the circuit")

	status.Store(http.StatusBadGateway)
	require.Error(t, client.Get(ctx, "/quote", nil, nil))
	require.Error(t, client.Get(ctx, "/quote", nil, nil))
	err = client.Get(ctx, "/quote", nil, nil)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.EqualValues(t, 5, calls.Load())
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Name: "catalog"})
	require.Error(t, err)
}
