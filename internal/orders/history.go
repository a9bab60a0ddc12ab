package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/pkg/pagination"
)

// History is the buyer's cursor-paged order list.
type History struct {
	client   Client
	identity string
	limit    int

	mu      sync.Mutex
	items   []Order
	cursor  string
	hasMore bool
}

func NewHistory(client Client, identity string, pageSize int) (*History, error) {
	if client == nil {
		return nil, errors.New("orders client required")
	}
	if identity == "" {
		return nil, errors.New("identity required")
	}
	return &History{client: client, identity: identity, limit: pagination.NormalizeLimit(pageSize)}, nil
}

// Refresh reloads the first page, replacing what was loaded.
func (h *History) Refresh(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	page, err := h.client.ListMyOrders(ctx, h.identity, pagination.Params{Limit: h.limit})
	if err != nil {
		return err
	}
	h.items = append([]Order(nil), page.Items...)
	h.cursor, h.hasMore = page.NextCursor, page.HasMore
	return nil
}

// LoadMore appends the next page. It is a no-op once the list is exhausted.
func (h *History) LoadMore(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.hasMore {
		return nil
	}
	page, err := h.client.ListMyOrders(ctx, h.identity, pagination.Params{Limit: h.limit, Cursor: h.cursor})
	if err != nil {
		return err
	}
	h.items = append(h.items, page.Items...)
	h.cursor, h.hasMore = page.NextCursor, page.HasMore
	return nil
}

func (h *History) Items() []Order {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Order(nil), h.items...)
}

func (h *History) HasMore() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasMore
}
