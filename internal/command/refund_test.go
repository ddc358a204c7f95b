package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deliveredPad sells one $49.99 controller from a stock of 10 and marks the
// order completed.
func deliveredPad(t *testing.T, env *testEnv) *order.Order {
	t.Helper()
	env.seedProduct(t, "pad-1", "seller-1", product.TypePeripheral, "49.99", 10)
	o := env.buy(t, LineItem{ProductID: "pad-1", Quantity: 1})
	_, err := env.h.UpdateOrderStatus(context.Background(), UpdateOrderStatus{Actor: seller, OrderID: o.ID, Status: order.StatusCompleted})
	require.NoError(t, err)
	return o
}

func requestPadRefund(t *testing.T, env *testEnv, o *order.Order) *refund.Request {
	t.Helper()
	r, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "pad-1", Reason: "stick drift"})
	require.NoError(t, err)
	return r
}

// ============================================
// Digital Refund Tests
// ============================================

func TestHandler_RequestRefund_DigitalInsideWindowIsAutoAccepted(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "game-1", "seller-1", product.TypeDigitalGame, "59.99", 0)
	o := env.buy(t, LineItem{ProductID: "game-1", Quantity: 1})
	env.advance(5 * time.Hour)

	r, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "game-1", Reason: "does not launch"})

	require.NoError(t, err)
	assert.Equal(t, refund.StatusAutoAccepted, r.Status)
	assert.True(t, r.RefundAmount.Equal(decimal.RequireFromString("59.99")))
	assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "game-1").Status)

	p := env.product(t, "game-1")
	assert.Equal(t, 0, p.Sales.Total)
	assert.Equal(t, 0, p.Stock)

	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.Equal(t, 1, rec.TotalSales)
	assert.Equal(t, 1, rec.Refunds)
	assert.Equal(t, 0, rec.TotalUnits)
	assert.True(t, rec.TotalRevenue.IsZero())

	types := env.store.EventTypes()
	assert.Contains(t, types, refund.EventRefundRequested)
	assert.Contains(t, types, refund.EventRefundStatusChanged)
}

func TestHandler_RequestRefund_DigitalWindowBoundary(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "game-1", "seller-1", product.TypeDigitalGame, "59.99", 0)
	o := env.buy(t, LineItem{ProductID: "game-1", Quantity: 1})
	env.advance(6 * time.Hour)

	r, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "game-1", Reason: "bored"})

	require.NoError(t, err)
	assert.Equal(t, refund.StatusAutoAccepted, r.Status)
}

func TestHandler_RequestRefund_DigitalWindowExceeded(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "game-1", "seller-1", product.TypeDigitalGame, "59.99", 0)
	o := env.buy(t, LineItem{ProductID: "game-1", Quantity: 1})
	env.advance(6*time.Hour + time.Minute)

	r, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "game-1", Reason: "bored"})

	assert.Nil(t, r)
	assert.ErrorIs(t, err, apperr.ErrWindowExceeded)
	var wErr *refund.WindowExceededError
	require.True(t, errors.As(err, &wErr))
	assert.Equal(t, "Refund time limit exceeded for digital game (6 hours)", err.Error())

	assert.Equal(t, order.ItemRefundRejected, env.item(t, o.ID, "game-1").Status)
	assert.Contains(t, env.store.EventTypes(), refund.EventRefundWindowExceeded)

	requests, err := env.store.ListRefunds(context.Background(), store.RefundFilter{BuyerID: buyer.ID})
	require.NoError(t, err)
	assert.Empty(t, requests)
	assert.Equal(t, 1, env.product(t, "game-1").Sales.Total)
}

// ============================================
// Physical Refund Tests
// ============================================

func TestHandler_RespondToRefund_SellerAccepts(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	assert.Equal(t, 9, env.product(t, "pad-1").Stock)
	env.advance(48 * time.Hour)

	r := requestPadRefund(t, env, o)
	assert.Equal(t, refund.StatusPending, r.Status)
	assert.Equal(t, order.ItemRefundRequested, env.item(t, o.ID, "pad-1").Status)

	r, err := env.h.RespondToRefund(context.Background(), RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerAccept})

	require.NoError(t, err)
	assert.Equal(t, refund.StatusSellerAccepted, r.Status)
	require.NotNil(t, r.SellerResponse)
	assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "pad-1").Status)

	p := env.product(t, "pad-1")
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, 0, p.Sales.Total)

	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.True(t, rec.TotalRevenue.IsZero())
	assert.Equal(t, 1, rec.Refunds)
}

func TestHandler_RespondToRefund_RespondTwice(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)
	ctx := context.Background()

	_, err := env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerAccept})
	require.NoError(t, err)
	_, err = env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerReject, Reason: "changed my mind"})

	assert.ErrorIs(t, err, refund.ErrInvalidTransition)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 10, env.product(t, "pad-1").Stock)
}

func TestHandler_RespondToRefund_Guards(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)
	ctx := context.Background()

	_, err := env.h.RespondToRefund(ctx, RespondToRefund{Actor: otherSeller, RequestID: r.ID, Action: refund.ActionSellerAccept})
	assert.ErrorIs(t, err, refund.ErrRequestNotFound)

	_, err = env.h.RespondToRefund(ctx, RespondToRefund{Actor: buyer, RequestID: r.ID, Action: refund.ActionSellerAccept})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: r.ID, Action: "shrug"})
	assert.ErrorIs(t, err, refund.ErrInvalidAction)

	_, err = env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerReject})
	assert.ErrorIs(t, err, refund.ErrRejectReasonRequired)

	_, err = env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: "missing", Action: refund.ActionSellerAccept})
	assert.ErrorIs(t, err, refund.ErrRequestNotFound)

	stored, err := env.store.GetRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusPending, stored.Status)
}

func TestHandler_RequestRefund_PhysicalWindowExceeded(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	env.advance(7*24*time.Hour + time.Minute)

	_, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "pad-1", Reason: "late"})

	assert.ErrorIs(t, err, apperr.ErrWindowExceeded)
	assert.Equal(t, "Refund time limit exceeded for physical product (1 week)", err.Error())
	assert.Equal(t, order.ItemRefundRejected, env.item(t, o.ID, "pad-1").Status)
}

func TestHandler_RequestRefund_Eligibility(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "pad-1", "seller-1", product.TypePeripheral, "49.99", 10)
	o := env.buy(t, LineItem{ProductID: "pad-1", Quantity: 1})
	ctx := context.Background()

	_, err := env.h.RequestRefund(ctx, RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "pad-1", Reason: "not shipped"})
	assert.ErrorIs(t, err, refund.ErrNotEligible, "pending items are not refundable")

	_, err = env.h.RequestRefund(ctx, RequestRefund{Actor: otherBuyer, OrderID: o.ID, ProductID: "pad-1", Reason: "mine"})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = env.h.RequestRefund(ctx, RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "pad-1", Reason: "  "})
	assert.ErrorIs(t, err, refund.ErrReasonRequired)

	_, err = env.h.RequestRefund(ctx, RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "other", Reason: "x"})
	assert.ErrorIs(t, err, order.ErrItemNotFound)

	_, err = env.h.RequestRefund(ctx, RequestRefund{Actor: seller, OrderID: o.ID, ProductID: "pad-1", Reason: "x"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestHandler_RequestRefund_OnlyOnceWhileOpen(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	requestPadRefund(t, env, o)

	_, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "pad-1", Reason: "again"})

	assert.ErrorIs(t, err, refund.ErrNotEligible)
}

// ============================================
// Dispute Tests
// ============================================

func rejectedPadRefund(t *testing.T, env *testEnv) (*order.Order, *refund.Request) {
	t.Helper()
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)
	r, err := env.h.RespondToRefund(context.Background(), RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerReject, Reason: "used item returned damaged"})
	require.NoError(t, err)
	return o, r
}

func TestHandler_DisputeRefund_AfterSellerRejects(t *testing.T) {
	env := newTestHandler(t)
	o, r := rejectedPadRefund(t, env)

	assert.Equal(t, refund.StatusSellerRejected, r.Status)
	assert.Equal(t, "used item returned damaged", r.SellerResponse.Reason)
	assert.Equal(t, order.ItemCompleted, env.item(t, o.ID, "pad-1").Status)

	r, err := env.h.DisputeRefund(context.Background(), DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: "item was never used"})

	require.NoError(t, err)
	assert.Equal(t, refund.StatusDisputed, r.Status)
	require.NotNil(t, r.Dispute)
	assert.Equal(t, refund.DisputePending, r.Dispute.Status)
	assert.Equal(t, order.ItemCompleted, env.item(t, o.ID, "pad-1").Status)
	assert.Equal(t, 9, env.product(t, "pad-1").Stock)
}

func TestHandler_DisputeRefund_Guards(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)
	ctx := context.Background()

	_, err := env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: "too early"})
	assert.ErrorIs(t, err, refund.ErrInvalidTransition)

	_, err = env.h.DisputeRefund(ctx, DisputeRefund{Actor: otherBuyer, RequestID: r.ID, Reason: "not mine"})
	assert.ErrorIs(t, err, refund.ErrNotDisputable)

	_, err = env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: ""})
	assert.ErrorIs(t, err, refund.ErrDisputeReasonRequired)
}

func TestHandler_ResolveDispute_Approve(t *testing.T) {
	env := newTestHandler(t)
	o, r := rejectedPadRefund(t, env)
	ctx := context.Background()
	_, err := env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: "item was never used"})
	require.NoError(t, err)

	r, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: r.ID, Decision: "approve"})

	require.NoError(t, err)
	assert.Equal(t, refund.StatusAdminAccepted, r.Status)
	assert.Equal(t, refund.DisputeResolved, r.Dispute.Status)
	require.NotNil(t, r.Dispute.ResolvedAt)
	assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "pad-1").Status)
	assert.Equal(t, 10, env.product(t, "pad-1").Stock)
	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.Equal(t, 1, rec.Refunds)
}

func TestHandler_ResolveDispute_Reject(t *testing.T) {
	env := newTestHandler(t)
	o, r := rejectedPadRefund(t, env)
	ctx := context.Background()
	_, err := env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: "item was never used"})
	require.NoError(t, err)

	r, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: r.ID, Decision: "reject"})

	require.NoError(t, err)
	assert.Equal(t, refund.StatusAdminRejected, r.Status)
	assert.Equal(t, refund.DisputeResolved, r.Dispute.Status)
	assert.Equal(t, order.ItemRefundRejected, env.item(t, o.ID, "pad-1").Status)
	assert.Equal(t, 9, env.product(t, "pad-1").Stock)

	_, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: r.ID, Decision: "approve"})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestHandler_ResolveDispute_Guards(t *testing.T) {
	env := newTestHandler(t)
	_, r := rejectedPadRefund(t, env)
	ctx := context.Background()

	_, err := env.h.ResolveDispute(ctx, ResolveDispute{Actor: seller, RequestID: r.ID, Decision: "approve"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: r.ID, Decision: "maybe"})
	assert.ErrorIs(t, err, refund.ErrInvalidAction)

	_, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: r.ID, Decision: "approve"})
	assert.ErrorIs(t, err, refund.ErrInvalidTransition, "only disputed requests can be resolved")
}

func TestHandler_RequestRefund_RefusedWhileDisputed(t *testing.T) {
	env := newTestHandler(t)
	o, r := rejectedPadRefund(t, env)
	ctx := context.Background()
	_, err := env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: "item was never used"})
	require.NoError(t, err)

	_, err = env.h.RequestRefund(ctx, RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "pad-1", Reason: "asking again"})
	assert.ErrorIs(t, err, refund.ErrDisputeOpen)
	assert.Equal(t, order.ItemCompleted, env.item(t, o.ID, "pad-1").Status)

	r, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: r.ID, Decision: "reject"})
	require.NoError(t, err)
	assert.Equal(t, refund.StatusAdminRejected, r.Status)
	assert.Equal(t, order.ItemRefundRejected, env.item(t, o.ID, "pad-1").Status)

	open, err := env.store.ListRefunds(ctx, store.RefundFilter{OrderID: o.ID, ProductID: "pad-1", Statuses: []refund.Status{refund.StatusPending}})
	require.NoError(t, err)
	assert.Empty(t, open, "no request is left waiting on a closed line")
}

func TestHandler_DisputeRefund_RefusedOnceLineMovedOn(t *testing.T) {
	env := newTestHandler(t)
	o, first := rejectedPadRefund(t, env)
	ctx := context.Background()
	second := requestPadRefund(t, env, o)

	_, err := env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: first.ID, Reason: "item was never used"})
	assert.ErrorIs(t, err, refund.ErrItemMoved)

	_, err = env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: second.ID, Action: refund.ActionSellerAccept})
	require.NoError(t, err)
	assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "pad-1").Status)

	_, err = env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: first.ID, Reason: "item was never used"})
	assert.ErrorIs(t, err, refund.ErrItemMoved)

	stored, err := env.store.GetRefund(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusSellerRejected, stored.Status)
	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.Equal(t, 1, rec.Refunds)
	assert.Equal(t, 10, env.product(t, "pad-1").Stock)
}

func TestHandler_DisputeRefund_OneDisputePerLine(t *testing.T) {
	env := newTestHandler(t)
	o, first := rejectedPadRefund(t, env)
	ctx := context.Background()
	second := requestPadRefund(t, env, o)
	_, err := env.h.RespondToRefund(ctx, RespondToRefund{Actor: seller, RequestID: second.ID, Action: refund.ActionSellerReject, Reason: "still damaged"})
	require.NoError(t, err)

	_, err = env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: first.ID, Reason: "item was never used"})
	require.NoError(t, err)
	_, err = env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: second.ID, Reason: "same complaint"})
	assert.ErrorIs(t, err, refund.ErrDisputeOpen)

	_, err = env.h.ResolveDispute(ctx, ResolveDispute{Actor: admin, RequestID: first.ID, Decision: "approve"})
	require.NoError(t, err)
	assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "pad-1").Status)

	_, err = env.h.DisputeRefund(ctx, DisputeRefund{Actor: buyer, RequestID: second.ID, Reason: "same complaint"})
	assert.ErrorIs(t, err, refund.ErrItemMoved)
	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.Equal(t, 1, rec.Refunds)
}

// ============================================
// Concurrency Tests
// ============================================

func TestHandler_RespondToRefund_ConcurrentAcceptsGrantOnce(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)

	const sellers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.h.RespondToRefund(context.Background(), RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerAccept})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInvalidState):
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, sellers-1, refused)
	p := env.product(t, "pad-1")
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, 0, p.Sales.Total)
	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	assert.Equal(t, 1, rec.Refunds)
	assert.True(t, rec.TotalRevenue.IsZero())
}

func TestHandler_RespondToRefund_AcceptRacingReject(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	actions := []RespondToRefund{
		{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerAccept},
		{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerReject, Reason: "used item returned damaged"},
	}
	for i, cmd := range actions {
		i, cmd := i, cmd
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.h.RespondToRefund(context.Background(), cmd)
		}()
	}
	wg.Wait()

	require.True(t, (errs[0] == nil) != (errs[1] == nil), "exactly one response wins: %v", errs)
	stored, err := env.store.GetRefund(context.Background(), r.ID)
	require.NoError(t, err)
	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	if errs[0] == nil {
		assert.Equal(t, refund.StatusSellerAccepted, stored.Status)
		assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "pad-1").Status)
		assert.Equal(t, 1, rec.Refunds)
		assert.ErrorIs(t, errs[1], apperr.ErrInvalidState)
	} else {
		assert.Equal(t, refund.StatusSellerRejected, stored.Status)
		assert.Equal(t, order.ItemCompleted, env.item(t, o.ID, "pad-1").Status)
		assert.Equal(t, 0, rec.Refunds)
		assert.ErrorIs(t, errs[0], apperr.ErrInvalidState)
	}
}

func TestHandler_ResolveDispute_ConcurrentRulingsApplyOnce(t *testing.T) {
	env := newTestHandler(t)
	o, r := rejectedPadRefund(t, env)
	_, err := env.h.DisputeRefund(context.Background(), DisputeRefund{Actor: buyer, RequestID: r.ID, Reason: "item was never used"})
	require.NoError(t, err)

	const rulings = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < rulings; i++ {
		decision := "approve"
		if i%2 == 1 {
			decision = "reject"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.h.ResolveDispute(context.Background(), ResolveDispute{Actor: admin, RequestID: r.ID, Decision: decision})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	stored, err := env.store.GetRefund(context.Background(), r.ID)
	require.NoError(t, err)
	rec := env.requireBalanced(t, "seller-1", ledger.PeriodOf(testNow))
	switch stored.Status {
	case refund.StatusAdminAccepted:
		assert.Equal(t, order.ItemRefunded, env.item(t, o.ID, "pad-1").Status)
		assert.Equal(t, 1, rec.Refunds)
		assert.Equal(t, 10, env.product(t, "pad-1").Stock)
	case refund.StatusAdminRejected:
		assert.Equal(t, order.ItemRefundRejected, env.item(t, o.ID, "pad-1").Status)
		assert.Equal(t, 0, rec.Refunds)
		assert.Equal(t, 9, env.product(t, "pad-1").Stock)
	default:
		t.Fatalf("unexpected status %s", stored.Status)
	}
}

// ============================================
// Atomicity Tests
// ============================================

func TestHandler_RespondToRefund_RollsBackOnLedgerFailure(t *testing.T) {
	env := newTestHandler(t)
	o := deliveredPad(t, env)
	r := requestPadRefund(t, env, o)
	env.store.PostLedgerErr = errors.New("ledger offline")

	_, err := env.h.RespondToRefund(context.Background(), RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerAccept})

	require.Error(t, err)
	stored, err := env.store.GetRefund(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusPending, stored.Status)
	assert.Equal(t, order.ItemRefundRequested, env.item(t, o.ID, "pad-1").Status)
	assert.Equal(t, 9, env.product(t, "pad-1").Stock)
}

func TestHandler_AutoAcceptedRequestIsClosed(t *testing.T) {
	env := newTestHandler(t)
	env.seedProduct(t, "game-1", "seller-1", product.TypeDigitalGame, "59.99", 0)
	o := env.buy(t, LineItem{ProductID: "game-1", Quantity: 1})

	r, err := env.h.RequestRefund(context.Background(), RequestRefund{Actor: buyer, OrderID: o.ID, ProductID: "game-1", Reason: "wrong platform"})
	require.NoError(t, err)

	_, err = env.h.RespondToRefund(context.Background(), RespondToRefund{Actor: seller, RequestID: r.ID, Action: refund.ActionSellerReject, Reason: "too late"})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}
