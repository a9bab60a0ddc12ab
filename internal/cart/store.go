package cart

import (
	"context"
	"errors"
	"sync"
)

// ErrRecordNotFound is returned by Store.Load when no cart was ever saved for an identity.
var ErrRecordNotFound = errors.New("cart record not found")

// Item is one cart line. Quantity is always at least one for a stored line.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Store persists one cart per identity.
type Store interface {
	Load(ctx context.Context, identity string) ([]Item, error)
	Save(ctx context.Context, identity string, items []Item) error
	Delete(ctx context.Context, identity string) error
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]Item)}
}

func (m *MemoryStore) Load(_ context.Context, identity string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, ok := m.carts[identity]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneItems(items), nil
}

func (m *MemoryStore) Save(_ context.Context, identity string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[identity] = cloneItems(items)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, identity)
	return nil
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
