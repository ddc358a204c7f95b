package store

import (
	"context"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/domain/wishlist"
)

var (
	// ErrConflict means a compare-and-set found a different current state.
	ErrConflict  = apperr.New(apperr.ErrInvalidState, "record was modified concurrently")
	ErrDuplicate = apperr.New(apperr.ErrInvalidState, "record already exists")
)

type ProductFilter struct {
	SellerID       string
	Status         product.Status
	Type           product.Type
	IncludeDeleted bool
}

type RefundFilter struct {
	BuyerID   string
	SellerID  string
	OrderID   string
	ProductID string
	Statuses  []refund.Status
}

type RatingFilter struct {
	ProductID string
	BuyerID   string
}

// Reader is the read side shared by Store and Tx. Lookups of a missing
// entity return that entity's not-found error.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]*product.Product, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context, buyerID string) ([]*order.Order, error)
	ListSellerOrders(ctx context.Context, sellerID string) ([]*order.Order, error)
	GetRefund(ctx context.Context, id string) (*refund.Request, error)
	ListRefunds(ctx context.Context, f RefundFilter) ([]*refund.Request, error)
	// GetLedger returns a zero record when the seller-month has none.
	GetLedger(ctx context.Context, sellerID string, p ledger.Period) (*ledger.Record, error)
	ListLedgerTransactions(ctx context.Context, sellerID string, p ledger.Period) ([]ledger.Transaction, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	// ListUsers returns every account, deactivated ones included, newest first.
	ListUsers(ctx context.Context) ([]*user.User, error)

	GetRating(ctx context.Context, id string) (*rating.Rating, error)
	// ListRatings returns ratings newest first.
	ListRatings(ctx context.Context, f RatingFilter) ([]*rating.Rating, error)

	// ListWishlist returns a buyer's entries in the order they were added.
	ListWishlist(ctx context.Context, buyerID string) ([]wishlist.Entry, error)
	// ListSaleWatchers returns the buyers wishing for productID with sale
	// notifications enabled.
	ListSaleWatchers(ctx context.Context, productID string) ([]string, error)
}

// Tx is one atomic unit of work. Counter changes are applied as increments
// by the storage engine and status changes are compare-and-set.
type Tx interface {
	Reader

	CreateProduct(ctx context.Context, p *product.Product) error
	// UpdateListing writes seller-controlled fields. Stock and sales are untouched.
	UpdateListing(ctx context.Context, p *product.Product) error
	// AdjustProduct applies adj atomically; a result below zero stock fails
	// with *product.StockError and changes nothing.
	AdjustProduct(ctx context.Context, productID string, adj product.Adjustment, at time.Time) error
	// RestockProduct adds quantity units of stock. Sales counters are untouched.
	RestockProduct(ctx context.Context, productID string, quantity int, at time.Time) error

	CreateOrder(ctx context.Context, o *order.Order) error
	SetOrderStatus(ctx context.Context, orderID string, from, to order.Status, at time.Time) error
	SetItemStatus(ctx context.Context, orderID, productID string, from, to order.ItemStatus, at time.Time) error
	// LockItem returns the current status of a line and holds it against
	// concurrent writers until the transaction ends.
	LockItem(ctx context.Context, orderID, productID string) (order.ItemStatus, error)

	CreateRefund(ctx context.Context, r *refund.Request) error
	// UpdateRefund persists r only if the stored status is still from.
	UpdateRefund(ctx context.Context, r *refund.Request, from refund.Status) error

	// EnsureLedger creates an empty seller-month record if none exists.
	EnsureLedger(ctx context.Context, sellerID string, p ledger.Period, at time.Time) error
	// PostLedger appends tx to the log and adds its delta to the record.
	PostLedger(ctx context.Context, tx ledger.Transaction) error

	CreateUser(ctx context.Context, u *user.User) error
	// DeactivateUser marks an account inactive. Deactivating twice is not an error.
	DeactivateUser(ctx context.Context, id string, at time.Time) error

	// CreateRating fails with rating.ErrAlreadyRated when the buyer already
	// rated the product.
	CreateRating(ctx context.Context, r *rating.Rating) error
	UpdateRating(ctx context.Context, r *rating.Rating) error
	DeleteRating(ctx context.Context, id string) error

	// AddWishlistEntry fails with wishlist.ErrAlreadyWishlisted on a repeat.
	AddWishlistEntry(ctx context.Context, e wishlist.Entry) error
	RemoveWishlistEntry(ctx context.Context, buyerID, productID string) error
	SetWishlistNotify(ctx context.Context, buyerID, productID string, notify bool) error

	AppendEvent(ctx context.Context, e Event) error
}

type Store interface {
	Reader
	// WithinTx runs fn in a transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Outbox is read by the relay that forwards events to Kafka.
type Outbox interface {
	PendingEvents(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}
