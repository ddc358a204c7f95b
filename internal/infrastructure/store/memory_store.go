package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/domain/wishlist"
)

// MemoryStore keeps everything in process. Transactions are serialized and
// work on a copy of the state that replaces the original only on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type ledgerKey struct {
	sellerID string
	period   ledger.Period
}

// memState values are never mutated in place once stored; writers replace
// map entries with fresh copies so a discarded draft leaves no trace.
type memState struct {
	products  map[string]product.Product
	orders    map[string]*order.Order
	refunds   map[string]*refund.Request
	ledgers   map[ledgerKey]ledger.Record
	ledgerTxs []ledger.Transaction
	users     map[string]user.User
	ratings   map[string]rating.Rating
	wishes    []wishlist.Entry
	events    []Event
	published map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		products:  make(map[string]product.Product),
		orders:    make(map[string]*order.Order),
		refunds:   make(map[string]*refund.Request),
		ledgers:   make(map[ledgerKey]ledger.Record),
		users:     make(map[string]user.User),
		ratings:   make(map[string]rating.Rating),
		published: make(map[string]time.Time),
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		products:  maps.Clone(s.products),
		orders:    maps.Clone(s.orders),
		refunds:   maps.Clone(s.refunds),
		ledgers:   maps.Clone(s.ledgers),
		ledgerTxs: slices.Clip(s.ledgerTxs),
		users:     maps.Clone(s.users),
		ratings:   maps.Clone(s.ratings),
		wishes:    slices.Clip(s.wishes),
		events:    slices.Clip(s.events),
		published: maps.Clone(s.published),
	}
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.state.clone()
	if err := fn(&memTx{memReader{draft}}); err != nil {
		return err
	}
	m.state = draft
	return nil
}

// read returns a reader over the committed state.
func (m *MemoryStore) read() memReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memReader{m.state}
}

// Readers on MemoryStore see a consistent committed snapshot: the state
// pointer is swapped whole on commit and committed maps are never written.

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return m.read().GetProduct(ctx, id)
}

func (m *MemoryStore) ListProducts(ctx context.Context, f ProductFilter) ([]*product.Product, error) {
	return m.read().ListProducts(ctx, f)
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return m.read().GetOrder(ctx, id)
}

func (m *MemoryStore) ListOrders(ctx context.Context, buyerID string) ([]*order.Order, error) {
	return m.read().ListOrders(ctx, buyerID)
}

func (m *MemoryStore) ListSellerOrders(ctx context.Context, sellerID string) ([]*order.Order, error) {
	return m.read().ListSellerOrders(ctx, sellerID)
}

func (m *MemoryStore) GetRefund(ctx context.Context, id string) (*refund.Request, error) {
	return m.read().GetRefund(ctx, id)
}

func (m *MemoryStore) ListRefunds(ctx context.Context, f RefundFilter) ([]*refund.Request, error) {
	return m.read().ListRefunds(ctx, f)
}

func (m *MemoryStore) GetLedger(ctx context.Context, sellerID string, p ledger.Period) (*ledger.Record, error) {
	return m.read().GetLedger(ctx, sellerID, p)
}

func (m *MemoryStore) ListLedgerTransactions(ctx context.Context, sellerID string, p ledger.Period) ([]ledger.Transaction, error) {
	return m.read().ListLedgerTransactions(ctx, sellerID, p)
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	return m.read().GetUser(ctx, id)
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return m.read().GetUserByEmail(ctx, email)
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]*user.User, error) {
	return m.read().ListUsers(ctx)
}

func (m *MemoryStore) GetRating(ctx context.Context, id string) (*rating.Rating, error) {
	return m.read().GetRating(ctx, id)
}

func (m *MemoryStore) ListRatings(ctx context.Context, f RatingFilter) ([]*rating.Rating, error) {
	return m.read().ListRatings(ctx, f)
}

func (m *MemoryStore) ListWishlist(ctx context.Context, buyerID string) ([]wishlist.Entry, error) {
	return m.read().ListWishlist(ctx, buyerID)
}

func (m *MemoryStore) ListSaleWatchers(ctx context.Context, productID string) ([]string, error) {
	return m.read().ListSaleWatchers(ctx, productID)
}

// Outbox

func (m *MemoryStore) PendingEvents(_ context.Context, limit int) ([]Event, error) {
	r := m.read()
	var pending []Event
	for _, e := range r.s.events {
		if _, done := r.s.published[e.ID]; done {
			continue
		}
		pending = append(pending, e)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (m *MemoryStore) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	return m.WithinTx(ctx, func(tx Tx) error {
		s := tx.(*memTx).s
		for _, id := range ids {
			s.published[id] = at
		}
		return nil
	})
}

// Events returns every event ever appended, oldest first.
func (m *MemoryStore) Events() []Event {
	return slices.Clone(m.read().s.events)
}

type memReader struct {
	s *memState
}

func (r memReader) GetProduct(_ context.Context, id string) (*product.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return &p, nil
}

func (r memReader) ListProducts(_ context.Context, f ProductFilter) ([]*product.Product, error) {
	var out []*product.Product
	for _, p := range r.s.products {
		if f.SellerID != "" && p.SellerID != f.SellerID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if !f.IncludeDeleted && f.Status == "" && p.Status == product.StatusDeleted {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memReader) GetOrder(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r memReader) listOrders(keep func(*order.Order) bool) []*order.Order {
	var out []*order.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memReader) ListOrders(_ context.Context, buyerID string) ([]*order.Order, error) {
	return r.listOrders(func(o *order.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r memReader) ListSellerOrders(_ context.Context, sellerID string) ([]*order.Order, error) {
	return r.listOrders(func(o *order.Order) bool { return o.HasSeller(sellerID) }), nil
}

func (r memReader) GetRefund(_ context.Context, id string) (*refund.Request, error) {
	req, ok := r.s.refunds[id]
	if !ok {
		return nil, refund.ErrRequestNotFound
	}
	return req.Clone(), nil
}

func (r memReader) ListRefunds(_ context.Context, f RefundFilter) ([]*refund.Request, error) {
	var out []*refund.Request
	for _, req := range r.s.refunds {
		if f.BuyerID != "" && req.BuyerID != f.BuyerID {
			continue
		}
		if f.SellerID != "" && req.SellerID != f.SellerID {
			continue
		}
		if f.OrderID != "" && req.OrderID != f.OrderID {
			continue
		}
		if f.ProductID != "" && req.ProductID != f.ProductID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, req.Status) {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memReader) GetLedger(_ context.Context, sellerID string, p ledger.Period) (*ledger.Record, error) {
	rec, ok := r.s.ledgers[ledgerKey{sellerID, p}]
	if !ok {
		return ledger.NewRecord(sellerID, p), nil
	}
	return &rec, nil
}

func (r memReader) ListLedgerTransactions(_ context.Context, sellerID string, p ledger.Period) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range r.s.ledgerTxs {
		if tx.SellerID == sellerID && tx.Period == p {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r memReader) GetUser(_ context.Context, id string) (*user.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &u, nil
}

func (r memReader) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r memReader) ListUsers(_ context.Context) ([]*user.User, error) {
	out := make([]*user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memReader) GetRating(_ context.Context, id string) (*rating.Rating, error) {
	rt, ok := r.s.ratings[id]
	if !ok {
		return nil, rating.ErrRatingNotFound
	}
	return &rt, nil
}

func (r memReader) ListRatings(_ context.Context, f RatingFilter) ([]*rating.Rating, error) {
	var out []*rating.Rating
	for _, rt := range r.s.ratings {
		if f.ProductID != "" && rt.ProductID != f.ProductID {
			continue
		}
		if f.BuyerID != "" && rt.BuyerID != f.BuyerID {
			continue
		}
		rt := rt
		out = append(out, &rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memReader) ListWishlist(_ context.Context, buyerID string) ([]wishlist.Entry, error) {
	var out []wishlist.Entry
	for _, e := range r.s.wishes {
		if e.BuyerID == buyerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memReader) ListSaleWatchers(_ context.Context, productID string) ([]string, error) {
	var out []string
	for _, e := range r.s.wishes {
		if e.ProductID == productID && e.NotifyOnSale {
			out = append(out, e.BuyerID)
		}
	}
	return out, nil
}

func (r memReader) wishIndex(buyerID, productID string) int {
	return slices.IndexFunc(r.s.wishes, func(e wishlist.Entry) bool {
		return e.BuyerID == buyerID && e.ProductID == productID
	})
}

type memTx struct {
	memReader
}

func (t *memTx) CreateProduct(_ context.Context, p *product.Product) error {
	if _, exists := t.s.products[p.ID]; exists {
		return ErrDuplicate
	}
	t.s.products[p.ID] = *p
	return nil
}

func (t *memTx) UpdateListing(_ context.Context, p *product.Product) error {
	cur, ok := t.s.products[p.ID]
	if !ok {
		return product.ErrProductNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Price = p.Price
	cur.OnSale = p.OnSale
	cur.SalePrice = p.SalePrice
	cur.SaleEndDate = p.SaleEndDate
	cur.Category = p.Category
	cur.Status = p.Status
	cur.UpdatedAt = p.UpdatedAt
	t.s.products[p.ID] = cur
	return nil
}

func (t *memTx) AdjustProduct(_ context.Context, productID string, adj product.Adjustment, at time.Time) error {
	p, ok := t.s.products[productID]
	if !ok {
		return product.ErrProductNotFound
	}
	if err := p.Apply(adj, at); err != nil {
		return err
	}
	p.UpdatedAt = at
	t.s.products[productID] = p
	return nil
}

func (t *memTx) RestockProduct(_ context.Context, productID string, quantity int, at time.Time) error {
	p, ok := t.s.products[productID]
	if !ok {
		return product.ErrProductNotFound
	}
	if p.Stock+quantity < 0 {
		return &product.StockError{ProductName: p.Name, Available: p.Stock}
	}
	p.Stock += quantity
	p.UpdatedAt = at
	t.s.products[productID] = p
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, o *order.Order) error {
	if _, exists := t.s.orders[o.ID]; exists {
		return ErrDuplicate
	}
	t.s.orders[o.ID] = o.Clone()
	return nil
}

func (t *memTx) SetOrderStatus(_ context.Context, orderID string, from, to order.Status, at time.Time) error {
	cur, ok := t.s.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if cur.Status != from {
		return ErrConflict
	}
	o := cur.Clone()
	o.Status = to
	o.UpdatedAt = at
	t.s.orders[orderID] = o
	return nil
}

func (t *memTx) SetItemStatus(_ context.Context, orderID, productID string, from, to order.ItemStatus, at time.Time) error {
	cur, ok := t.s.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o := cur.Clone()
	item, err := o.Item(productID)
	if err != nil {
		return err
	}
	if item.Status != from {
		return ErrConflict
	}
	item.Status = to
	o.UpdatedAt = at
	t.s.orders[orderID] = o
	return nil
}

// LockItem needs no lock here; memory transactions already run one at a time.
func (t *memTx) LockItem(_ context.Context, orderID, productID string) (order.ItemStatus, error) {
	o, ok := t.s.orders[orderID]
	if !ok {
		return "", order.ErrOrderNotFound
	}
	item, err := o.Item(productID)
	if err != nil {
		return "", err
	}
	return item.Status, nil
}

func (t *memTx) CreateRefund(_ context.Context, r *refund.Request) error {
	if _, exists := t.s.refunds[r.ID]; exists {
		return ErrDuplicate
	}
	t.s.refunds[r.ID] = r.Clone()
	return nil
}

func (t *memTx) UpdateRefund(_ context.Context, r *refund.Request, from refund.Status) error {
	cur, ok := t.s.refunds[r.ID]
	if !ok {
		return refund.ErrRequestNotFound
	}
	if cur.Status != from {
		return ErrConflict
	}
	t.s.refunds[r.ID] = r.Clone()
	return nil
}

func (t *memTx) EnsureLedger(_ context.Context, sellerID string, p ledger.Period, at time.Time) error {
	key := ledgerKey{sellerID, p}
	if _, ok := t.s.ledgers[key]; !ok {
		rec := ledger.NewRecord(sellerID, p)
		rec.UpdatedAt = at
		t.s.ledgers[key] = *rec
	}
	return nil
}

func (t *memTx) PostLedger(_ context.Context, tx ledger.Transaction) error {
	key := ledgerKey{tx.SellerID, tx.Period}
	rec, ok := t.s.ledgers[key]
	if !ok {
		rec = *ledger.NewRecord(tx.SellerID, tx.Period)
	}
	rec.Apply(tx.Delta(), tx.Date)
	t.s.ledgers[key] = rec
	t.s.ledgerTxs = append(t.s.ledgerTxs, tx)
	return nil
}

func (t *memTx) CreateUser(_ context.Context, u *user.User) error {
	for _, existing := range t.s.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	t.s.users[u.ID] = *u
	return nil
}

func (t *memTx) DeactivateUser(_ context.Context, id string, at time.Time) error {
	u, ok := t.s.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	if !u.IsActive {
		return nil
	}
	u.IsActive = false
	u.UpdatedAt = at
	t.s.users[id] = u
	return nil
}

func (t *memTx) CreateRating(_ context.Context, r *rating.Rating) error {
	for _, existing := range t.s.ratings {
		if existing.ProductID == r.ProductID && existing.BuyerID == r.BuyerID {
			return rating.ErrAlreadyRated
		}
	}
	t.s.ratings[r.ID] = *r
	return nil
}

func (t *memTx) UpdateRating(_ context.Context, r *rating.Rating) error {
	if _, ok := t.s.ratings[r.ID]; !ok {
		return rating.ErrRatingNotFound
	}
	t.s.ratings[r.ID] = *r
	return nil
}

func (t *memTx) DeleteRating(_ context.Context, id string) error {
	if _, ok := t.s.ratings[id]; !ok {
		return rating.ErrRatingNotFound
	}
	delete(t.s.ratings, id)
	return nil
}

func (t *memTx) AddWishlistEntry(_ context.Context, e wishlist.Entry) error {
	if t.wishIndex(e.BuyerID, e.ProductID) >= 0 {
		return wishlist.ErrAlreadyWishlisted
	}
	t.s.wishes = append(t.s.wishes, e)
	return nil
}

// Wishlist writes build a new slice; the committed one may share its array.

func (t *memTx) RemoveWishlistEntry(_ context.Context, buyerID, productID string) error {
	i := t.wishIndex(buyerID, productID)
	if i < 0 {
		return wishlist.ErrNotInWishlist
	}
	t.s.wishes = slices.Delete(slices.Clone(t.s.wishes), i, i+1)
	return nil
}

func (t *memTx) SetWishlistNotify(_ context.Context, buyerID, productID string, notify bool) error {
	i := t.wishIndex(buyerID, productID)
	if i < 0 {
		return wishlist.ErrNotInWishlist
	}
	wishes := slices.Clone(t.s.wishes)
	wishes[i].NotifyOnSale = notify
	t.s.wishes = wishes
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e Event) error {
	t.s.events = append(t.s.events, e)
	return nil
}
