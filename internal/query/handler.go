package query

import (
	"context"
	"errors"
	"time"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/cache"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

type Handler struct {
	store store.Reader
	carts cache.CartStore
	now   func() time.Time
}

func NewHandler(s store.Reader, carts cache.CartStore) *Handler {
	return &Handler{
		store: s,
		carts: carts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Products

// ListProducts returns active listings, optionally narrowed to one seller
// or type.
func (h *Handler) ListProducts(ctx context.Context, sellerID string, typ product.Type) ([]*product.Product, error) {
	return h.store.ListProducts(ctx, store.ProductFilter{
		SellerID: sellerID,
		Type:     typ,
		Status:   product.StatusActive,
	})
}

// ListSellerProducts returns every listing of the calling seller that is
// not deleted.
func (h *Handler) ListSellerProducts(ctx context.Context, p auth.Principal) ([]*product.Product, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleSeller)); err != nil {
		return nil, err
	}
	return h.store.ListProducts(ctx, store.ProductFilter{SellerID: p.ID})
}

// GetProduct hides listings that are not active from everyone but their
// seller and admins.
func (h *Handler) GetProduct(ctx context.Context, p auth.Principal, id string) (*product.Product, error) {
	prod, err := h.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if prod.IsActive() {
		return prod, nil
	}
	if err := auth.Authorize(p, auth.Require(user.RoleAdmin), auth.Require(user.RoleSeller).OwnedBy(prod.SellerID)); err != nil {
		return nil, product.ErrProductNotFound
	}
	return prod, nil
}

// Cart

func (h *Handler) GetCart(ctx context.Context, p auth.Principal) (*CartView, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	c, err := h.carts.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	view := &CartView{BuyerID: p.ID, Items: make([]CartItemView, 0, len(c.Items)), Total: decimal.Zero}
	for _, it := range c.Items {
		line := CartItemView{ProductID: it.ProductID, Quantity: it.Quantity}
		prod, err := h.store.GetProduct(ctx, it.ProductID)
		switch {
		case errors.Is(err, product.ErrProductNotFound):
		case err != nil:
			return nil, err
		default:
			line.Name = prod.Name
			line.Type = prod.Type
			line.Price, line.IsDiscounted = prod.UnitPrice(now)
			line.Available = prod.IsActive() && (!prod.IsPhysical() || it.Quantity <= prod.Stock)
		}
		if line.Available {
			view.Total = view.Total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}

// Wishlist

// GetWishlist lists the buyer's entries with current prices. Entries whose
// product was removed stay listed as unavailable.
func (h *Handler) GetWishlist(ctx context.Context, p auth.Principal) ([]WishlistItemView, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	entries, err := h.store.ListWishlist(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	views := make([]WishlistItemView, 0, len(entries))
	for _, e := range entries {
		v := WishlistItemView{ProductID: e.ProductID, NotifyOnSale: e.NotifyOnSale, AddedAt: e.AddedAt}
		prod, err := h.store.GetProduct(ctx, e.ProductID)
		switch {
		case errors.Is(err, product.ErrProductNotFound):
		case err != nil:
			return nil, err
		default:
			v.Name = prod.Name
			v.Type = prod.Type
			v.Price, v.IsDiscounted = prod.UnitPrice(now)
			v.Available = prod.IsActive()
		}
		views = append(views, v)
	}
	return views, nil
}

// Ratings

const DefaultRatingsPerPage = 10

// ProductRatings returns page (1-based) of a product's ratings, newest first.
func (h *Handler) ProductRatings(ctx context.Context, productID string, page, limit int) (*RatingPage, error) {
	if _, err := h.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultRatingsPerPage
	}
	all, err := h.store.ListRatings(ctx, store.RatingFilter{ProductID: productID})
	if err != nil {
		return nil, err
	}

	out := &RatingPage{
		Ratings:      []*rating.Rating{},
		Summary:      rating.Summarize(all),
		CurrentPage:  page,
		TotalPages:   (len(all) + limit - 1) / limit,
		TotalRatings: len(all),
	}
	if start := (page - 1) * limit; start < len(all) {
		out.Ratings = all[start:min(start+limit, len(all))]
	}
	return out, nil
}

// MyRatings lists the buyer's own ratings, newest first.
func (h *Handler) MyRatings(ctx context.Context, p auth.Principal) ([]*rating.Rating, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	return h.store.ListRatings(ctx, store.RatingFilter{BuyerID: p.ID})
}

// Orders

// GetOrder returns an order to its buyer, to any seller with a line in it,
// and to admins. Everyone else gets ErrOrderNotFound.
func (h *Handler) GetOrder(ctx context.Context, p auth.Principal, id string) (*order.Order, error) {
	o, err := h.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeOrder(p, o) {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func canSeeOrder(p auth.Principal, o *order.Order) bool {
	switch p.Role {
	case user.RoleAdmin:
		return true
	case user.RoleBuyer:
		return o.BuyerID == p.ID
	case user.RoleSeller:
		return o.HasSeller(p.ID)
	}
	return false
}

// ListOrders returns a buyer's purchases or the orders containing a
// seller's products, newest first.
func (h *Handler) ListOrders(ctx context.Context, p auth.Principal) ([]*order.Order, error) {
	switch p.Role {
	case user.RoleBuyer:
		return h.store.ListOrders(ctx, p.ID)
	case user.RoleSeller:
		return h.store.ListSellerOrders(ctx, p.ID)
	}
	return nil, auth.ErrForbidden
}

// Refunds

// ListRefunds returns what the caller has to look at: a buyer's own
// requests, a seller's pending requests, or every disputed request for an
// admin.
func (h *Handler) ListRefunds(ctx context.Context, p auth.Principal) ([]*refund.Request, error) {
	var f store.RefundFilter
	switch p.Role {
	case user.RoleBuyer:
		f.BuyerID = p.ID
	case user.RoleSeller:
		f.SellerID = p.ID
		f.Statuses = []refund.Status{refund.StatusPending}
	case user.RoleAdmin:
		f.Statuses = []refund.Status{refund.StatusDisputed}
	default:
		return nil, auth.ErrForbidden
	}
	return h.store.ListRefunds(ctx, f)
}

func (h *Handler) GetRefund(ctx context.Context, p auth.Principal, id string) (*refund.Request, error) {
	r, err := h.store.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	err = auth.Authorize(p,
		auth.Require(user.RoleAdmin),
		auth.Require(user.RoleBuyer).OwnedBy(r.BuyerID),
		auth.Require(user.RoleSeller).OwnedBy(r.SellerID),
	)
	if err != nil {
		return nil, refund.ErrRequestNotFound
	}
	return r, nil
}

// Ledger

// GetLedger returns a seller-month to that seller or an admin.
func (h *Handler) GetLedger(ctx context.Context, p auth.Principal, sellerID string, period ledger.Period) (*LedgerView, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleAdmin), auth.Require(user.RoleSeller).OwnedBy(sellerID)); err != nil {
		return nil, err
	}
	rec, err := h.store.GetLedger(ctx, sellerID, period)
	if err != nil {
		return nil, err
	}
	txs, err := h.store.ListLedgerTransactions(ctx, sellerID, period)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	return &LedgerView{Record: rec, Transactions: txs}, nil
}

// SellerStats summarises a seller's catalogue and the current and previous
// month of sales.
func (h *Handler) SellerStats(ctx context.Context, p auth.Principal, sellerID string) (*SellerStats, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleAdmin), auth.Require(user.RoleSeller).OwnedBy(sellerID)); err != nil {
		return nil, err
	}

	products, err := h.store.ListProducts(ctx, store.ProductFilter{SellerID: sellerID})
	if err != nil {
		return nil, err
	}
	stats := &SellerStats{
		SellerID:         sellerID,
		TotalProducts:    len(products),
		TypeDistribution: make(map[product.Type]int),
	}
	for _, prod := range products {
		stats.TypeDistribution[prod.Type]++
	}

	current := ledger.PeriodOf(h.now())
	cur, err := h.store.GetLedger(ctx, sellerID, current)
	if err != nil {
		return nil, err
	}
	prev, err := h.store.GetLedger(ctx, sellerID, current.Previous())
	if err != nil {
		return nil, err
	}
	stats.CurrentMonth = monthSales(cur)
	stats.PreviousMonth = monthSales(prev)
	return stats, nil
}

// Users

func (h *Handler) GetUser(ctx context.Context, id string) (*user.User, error) {
	return h.store.GetUser(ctx, id)
}

// ListUsers returns every account to an admin.
func (h *Handler) ListUsers(ctx context.Context, p auth.Principal) ([]*user.User, error) {
	if err := auth.Authorize(p, auth.Require(user.RoleAdmin)); err != nil {
		return nil, err
	}
	return h.store.ListUsers(ctx)
}
