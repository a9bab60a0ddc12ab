package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/pagination"
	"github.com/angelmondragon/packfinderz-storefront/pkg/remote"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	key    string
	body   map[string]any
}

func newOrdersServer(t *testing.T, respond string) (*HTTPClient, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.key = r.Header.Get("Idempotency-Key")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&captured.body)
		}
		_, _ = w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)

	rc, err := remote.New(remote.Options{Name: "orders", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	client, err := NewHTTPClient(rc)
	require.NoError(t, err)
	return client, captured
}

func TestHTTPClientCreateOrderForwardsKey(t *testing.T) {
	t.Parallel()

	client, captured := newOrdersServer(t, `{"id":"ord-7","status":"pending","total":"10"}`)
	order, err := client.CreateOrder(context.Background(), "key-7", sampleOrder())
	require.NoError(t, err)
	require.Equal(t, "ord-7", order.ID)
	require.Equal(t, http.MethodPost, captured.method)
	require.Equal(t, "/orders", captured.path)
	require.Equal(t, "key-7", captured.key)
	require.Equal(t, "buyer", captured.body["buyer_identity"])
}

func TestHTTPClientCancelOrder(t *testing.T) {
	t.Parallel()

	client, captured := newOrdersServer(t, `{"status":"cancelled","refund":"4.50"}`)
	result, err := client.CancelOrder(context.Background(), "buyer", "ord-7")
	require.NoError(t, err)
	require.Equal(t, "ord-7", result.OrderID)
	require.NotNil(t, result.Refund)
	require.Equal(t, "4.5", result.Refund.String())
	require.Equal(t, "/orders/ord-7/cancel", captured.path)
}

func TestHTTPClientListMyOrders(t *testing.T) {
	t.Parallel()

	client, captured := newOrdersServer(t, `{"items":[{"id":"o1"}],"has_more":true,"next_cursor":"abc"}`)
	page, err := client.ListMyOrders(context.Background(), "buyer", pagination.Params{Limit: 500, Cursor: " c1 "})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.True(t, page.HasMore)
	require.Equal(t, "abc", page.NextCursor)
	require.Equal(t, "buyer=buyer&cursor=c1&limit=100", captured.query)
}
