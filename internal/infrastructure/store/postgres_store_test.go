package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/domain/wishlist"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := ConnectPostgres(fmt.Sprintf(
		"host=%s port=%d user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Int()))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, "./migrations"))

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return NewPostgresStore(db), cleanup
}

func TestPostgresStore_ProductRoundTrip(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := newTestProduct("prod-1", product.TypePeripheral, 10)
	end := testNow.Add(48 * time.Hour)
	p.OnSale = true
	p.SalePrice = decimal.RequireFromString("39.99")
	p.SaleEndDate = &end
	seedProduct(t, s, p)

	got, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.Price.Equal(got.Price))
	assert.True(t, p.SalePrice.Equal(got.SalePrice))
	require.NotNil(t, got.SaleEndDate)
	assert.True(t, end.Equal(*got.SaleEndDate))
	assert.True(t, got.Sales.LastMonthUpdated.IsZero())

	_, err = s.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

func TestPostgresStore_AdjustProduct(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedProduct(t, s, newTestProduct("prod-1", product.TypePeripheral, 5))

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.AdjustProduct(ctx, "prod-1", product.NewAdjustment(product.TypePeripheral, 2, false), testNow)
	}))
	// next month restarts the monthly counter
	nextMonth := testNow.AddDate(0, 1, 0)
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.AdjustProduct(ctx, "prod-1", product.NewAdjustment(product.TypePeripheral, 1, false), nextMonth)
	}))

	got, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, 3, got.Sales.Total)
	assert.Equal(t, 1, got.Sales.LastMonth)

	err = s.WithinTx(ctx, func(tx Tx) error {
		return tx.AdjustProduct(ctx, "prod-1", product.NewAdjustment(product.TypePeripheral, 3, false), nextMonth)
	})
	var stockErr *product.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
}

func TestPostgresStore_AdjustProduct_Concurrent(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedProduct(t, s, newTestProduct("prod-1", product.TypePeripheral, 10))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(tx Tx) error {
				return tx.AdjustProduct(ctx, "prod-1", product.NewAdjustment(product.TypePeripheral, 1, false), testNow)
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, accepted)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, 10, got.Sales.Total)
}

func TestPostgresStore_OrderAndRefund(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	o := seedOrder(t, s)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, order.ItemPending, got.Items[0].Status)
	require.NotNil(t, got.ShippingInfo)
	assert.Equal(t, "1 Main St", got.ShippingInfo.Address)

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.SetItemStatus(ctx, o.ID, "prod-1", order.ItemPending, order.ItemCompleted, testNow)
	}))
	err = s.WithinTx(ctx, func(tx Tx) error {
		return tx.SetItemStatus(ctx, o.ID, "prod-1", order.ItemPending, order.ItemCompleted, testNow)
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, _ = s.GetOrder(ctx, o.ID)
	req, err := refund.New("refund-1", got, got.Items[0], "broken", testNow)
	require.NoError(t, err)
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.CreateRefund(ctx, req) }))

	rejected := req.Clone()
	require.NoError(t, rejected.Apply(refund.ActionSellerReject, user.RoleSeller, "used", testNow))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.UpdateRefund(ctx, rejected, refund.StatusPending) }))

	disputed := rejected.Clone()
	require.NoError(t, disputed.Apply(refund.ActionDispute, user.RoleBuyer, "not used", testNow))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.UpdateRefund(ctx, disputed, refund.StatusSellerRejected) }))

	stored, err := s.GetRefund(ctx, "refund-1")
	require.NoError(t, err)
	assert.Equal(t, refund.StatusDisputed, stored.Status)
	require.NotNil(t, stored.SellerResponse)
	assert.Equal(t, "used", stored.SellerResponse.Reason)
	require.NotNil(t, stored.Dispute)
	assert.Equal(t, refund.DisputePending, stored.Dispute.Status)

	listed, err := s.ListRefunds(ctx, RefundFilter{Statuses: []refund.Status{refund.StatusDisputed}})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestPostgresStore_Ledger(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	p := ledger.PeriodOf(testNow)
	price := decimal.RequireFromString("59.99")

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.EnsureLedger(ctx, "seller-1", p.Previous(), testNow); err != nil {
			return err
		}
		if err := tx.PostLedger(ctx, ledger.NewSale("tx-1", "seller-1", "o-1", "p-1", 2, price, false, testNow)); err != nil {
			return err
		}
		return tx.PostLedger(ctx, ledger.NewReversal("tx-2", "seller-1", "o-1", "p-1", 1, price, testNow, testNow))
	}))

	rec, err := s.GetLedger(ctx, "seller-1", p)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalSales)
	assert.Equal(t, 1, rec.TotalUnits)
	assert.Equal(t, 1, rec.Refunds)
	assert.True(t, price.Equal(rec.TotalRevenue))

	txs, err := s.ListLedgerTransactions(ctx, "seller-1", p)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.KindRefund, txs[1].Kind)
	assert.NoError(t, ledger.Verify(rec, txs))
}

func TestPostgresStore_UsersAndOutbox(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	u, err := user.New("u-1", "buyer@example.com", "hash", "Buyer", user.RoleBuyer, testNow)
	require.NoError(t, err)
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		evt, err := NewEvent(u.ID, user.AggregateType, user.EventUserRegistered, user.UserRegistered{UserID: u.ID}, testNow)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	}))

	dup := *u
	dup.ID = "u-2"
	err = s.WithinTx(ctx, func(tx Tx) error { return tx.CreateUser(ctx, &dup) })
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, user.EventUserRegistered, pending[0].EventType)

	require.NoError(t, s.MarkPublished(ctx, []string{pending[0].ID}, testNow))
	pending, err = s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPostgresStore_RestockAndDeactivate(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedProduct(t, s, newTestProduct("prod-1", product.TypePeripheral, 5))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.AdjustProduct(ctx, "prod-1", product.Adjustment{Sales: 2, Stock: -2}, testNow)
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.RestockProduct(ctx, "prod-1", 4, testNow.AddDate(0, 1, 0)) }))
	got, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
	assert.Equal(t, 2, got.Sales.LastMonth)

	err = s.WithinTx(ctx, func(tx Tx) error { return tx.RestockProduct(ctx, "missing", 1, testNow) })
	assert.ErrorIs(t, err, product.ErrProductNotFound)

	u, err := user.New("u-1", "buyer@example.com", "hash", "Buyer", user.RoleBuyer, testNow)
	require.NoError(t, err)
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.CreateUser(ctx, u) }))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.DeactivateUser(ctx, "u-1", testNow) }))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.DeactivateUser(ctx, "u-1", testNow) }))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.False(t, users[0].IsActive)
}

func TestPostgresStore_RatingsAndWishlist(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedProduct(t, s, newTestProduct("prod-1", product.TypePeripheral, 5))

	r, err := rating.New("rating-1", "prod-1", "buyer-1", product.TypePeripheral, 4, "good", "", testNow)
	require.NoError(t, err)
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.CreateRating(ctx, r) }))
	dup, _ := rating.New("rating-2", "prod-1", "buyer-1", product.TypePeripheral, 5, "", "", testNow)
	err = s.WithinTx(ctx, func(tx Tx) error { return tx.CreateRating(ctx, dup) })
	assert.ErrorIs(t, err, rating.ErrAlreadyRated)

	require.NoError(t, r.Revise(2, "worse", testNow.Add(time.Hour)))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.UpdateRating(ctx, r) }))
	ratings, err := s.ListRatings(ctx, RatingFilter{ProductID: "prod-1"})
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 2, ratings[0].Score)
	assert.Equal(t, "worse", ratings[0].Review)

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.DeleteRating(ctx, "rating-1") }))
	_, err = s.GetRating(ctx, "rating-1")
	assert.ErrorIs(t, err, rating.ErrRatingNotFound)

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.AddWishlistEntry(ctx, wishlist.NewEntry("buyer-1", "prod-1", testNow))
	}))
	err = s.WithinTx(ctx, func(tx Tx) error {
		return tx.AddWishlistEntry(ctx, wishlist.NewEntry("buyer-1", "prod-1", testNow))
	})
	assert.ErrorIs(t, err, wishlist.ErrAlreadyWishlisted)

	watchers, err := s.ListSaleWatchers(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer-1"}, watchers)

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.SetWishlistNotify(ctx, "buyer-1", "prod-1", false) }))
	entries, err := s.ListWishlist(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].NotifyOnSale)

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.RemoveWishlistEntry(ctx, "buyer-1", "prod-1") }))
	err = s.WithinTx(ctx, func(tx Tx) error { return tx.RemoveWishlistEntry(ctx, "buyer-1", "prod-1") })
	assert.ErrorIs(t, err, wishlist.ErrNotInWishlist)
}
