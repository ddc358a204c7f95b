// Package stats keeps product stock and sales counters in step with sales
// and refunds. It is the only writer of those counters.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

var ErrInvalidQuantity = apperr.New(apperr.ErrValidation, "quantity must be positive")

// Apply adjusts the counters of productID for quantity units sold, or
// returned when isRefund is set. Sales move by quantity and, for physical
// products, stock moves the opposite way. The change is an increment inside
// tx so concurrent callers never lose updates.
func Apply(ctx context.Context, tx store.Tx, productID string, quantity int, isRefund bool, at time.Time) (product.Adjustment, error) {
	if quantity <= 0 {
		return product.Adjustment{}, ErrInvalidQuantity
	}
	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return product.Adjustment{}, err
	}

	adj := product.NewAdjustment(p.Type, quantity, isRefund)
	if err := tx.AdjustProduct(ctx, productID, adj, at); err != nil {
		return product.Adjustment{}, fmt.Errorf("adjust %s: %w", productID, err)
	}
	return adj, nil
}
