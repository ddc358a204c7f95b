// Package cache stores buyer carts outside the system of record.
package cache

import (
	"context"

	"github.com/example/game-marketplace/internal/domain/cart"
)

// CartStore loads and saves carts by buyer. Get returns an empty cart when
// the buyer has none.
type CartStore interface {
	Get(ctx context.Context, buyerID string) (*cart.Cart, error)
	Save(ctx context.Context, c *cart.Cart) error
	Delete(ctx context.Context, buyerID string) error
}
