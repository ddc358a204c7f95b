package command

import (
	"context"
	"testing"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Fulfilment Tests
// ============================================

func TestHandler_UpdateOrderStatus_ProcessingThenCompleted(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "pad-1", "seller-1", product.TypePeripheral, "49.99", 10)
	o := env.buy(t, LineItem{ProductID: "pad-1", Quantity: 1})
	ctx := context.Background()

	got, err := env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: seller, OrderID: o.ID, Status: order.StatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, order.ItemPending, env.item(t, o.ID, "pad-1").Status)

	got, err = env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: admin, OrderID: o.ID, Status: order.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, order.ItemCompleted, env.item(t, o.ID, "pad-1").Status)

	_, err = env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: admin, OrderID: o.ID, Status: order.StatusCancelled})
	assert.ErrorIs(t, err, order.ErrOrderCompleted)

	assert.Contains(t, env.store.EventTypes(), order.EventOrderStatusChanged)
}

func TestHandler_UpdateOrderStatus_Guards(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "pad-1", "seller-1", product.TypePeripheral, "49.99", 10)
	o := env.buy(t, LineItem{ProductID: "pad-1", Quantity: 1})
	ctx := context.Background()

	_, err := env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: otherSeller, OrderID: o.ID, Status: order.StatusProcessing})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: buyer, OrderID: o.ID, Status: order.StatusCancelled})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: seller, OrderID: o.ID, Status: order.StatusPending})
	assert.ErrorIs(t, err, order.ErrInvalidStatus)

	_, err = env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: seller, OrderID: "missing", Status: order.StatusProcessing})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestHandler_UpdateOrderStatus_CancelCompensates(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "pad-1", "seller-1", product.TypePeripheral, "49.99", 10)
	env.seedProduct(t, "game-1", "seller-2", product.TypeDigitalGame, "59.99", 0)
	o := env.buy(t, LineItem{ProductID: "pad-1", Quantity: 3}, LineItem{ProductID: "game-1", Quantity: 1})
	require.Equal(t, 7, env.product(t, "pad-1").Stock)

	got, err := env.h.UpdateOrderStatus(context.Background(), UpdateOrderStatus{Actor: admin, OrderID: o.ID, Status: order.StatusCancelled})

	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	for _, it := range got.Items {
		assert.Equal(t, order.ItemRefunded, it.Status, it.ProductID)
	}

	pad := env.product(t, "pad-1")
	assert.Equal(t, 10, pad.Stock)
	assert.Equal(t, 0, pad.Sales.Total)
	assert.Equal(t, 0, env.product(t, "game-1").Sales.Total)

	march := ledger.PeriodOf(testNow)
	rec := env.requireBalanced(t, "seller-1", march)
	assert.True(t, rec.TotalRevenue.IsZero())
	assert.Equal(t, 1, rec.Refunds)
	rec = env.requireBalanced(t, "seller-2", march)
	assert.True(t, rec.TotalRevenue.IsZero())
}

func TestHandler_UpdateOrderStatus_CancelSkipsClosedLines(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "pad-1", "seller-1", product.TypePeripheral, "49.99", 10)
	env.seedProduct(t, "game-1", "seller-1", product.TypeDigitalGame, "59.99", 0)
	o := env.buy(t, LineItem{ProductID: "pad-1", Quantity: 1}, LineItem{ProductID: "game-1", Quantity: 1})
	ctx := context.Background()

	_, err := env.h.RequestRefund(ctx, RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "game-1", Reason: "refund"})
	require.NoError(t, err)

	_, err = env.h.UpdateOrderStatus(ctx, UpdateOrderStatus{Actor: seller, OrderID: o.ID, Status: order.StatusCancelled})
	require.NoError(t, err)

	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.Equal(t, 2, rec.Refunds, "each line is reversed exactly once")
	assert.True(t, rec.TotalRevenue.IsZero())
	assert.Equal(t, 0, env.product(t, "game-1").Sales.Total)
}
