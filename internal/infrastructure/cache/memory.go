package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/example/game-marketplace/internal/domain/cart"
)

// MemoryCartStore is used when no Redis address is configured.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string]cart.Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]cart.Cart)}
}

func (m *MemoryCartStore) Get(_ context.Context, buyerID string) (*cart.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.carts[buyerID]
	if !ok {
		return cart.New(buyerID), nil
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (m *MemoryCartStore) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *c
	stored.Items = slices.Clone(c.Items)
	m.carts[c.BuyerID] = stored
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, buyerID)
	return nil
}
