package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/domain/wishlist"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements Store and Outbox on PostgreSQL.
type PostgresStore struct {
	pgReader
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: db}, db: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&pgTx{pgReader{q: sqlTx}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			log.Printf("[Store] Rollback failed: %v", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) PendingEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, data, created_at
		 FROM outbox_events WHERE published_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			data []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Data = data
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = $2 WHERE id = ANY($1)`, pq.Array(ids), at)
	return err
}

type pgReader struct {
	q querier
}

const productColumns = `id, seller_id, name, description, price, on_sale, sale_price, sale_end_date, stock,
	type, category, status, sales_total, sales_last_month, sales_last_month_updated, created_at, updated_at`

func scanProduct(row rowScanner) (*product.Product, error) {
	var (
		p           product.Product
		saleEnd     sql.NullTime
		lastUpdated sql.NullTime
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.OnSale, &p.SalePrice, &saleEnd,
		&p.Stock, &p.Type, &p.Category, &p.Status, &p.Sales.Total, &p.Sales.LastMonth, &lastUpdated,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if saleEnd.Valid {
		t := saleEnd.Time
		p.SaleEndDate = &t
	}
	if lastUpdated.Valid {
		p.Sales.LastMonthUpdated = lastUpdated.Time
	}
	return &p, nil
}

func (r pgReader) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	return p, err
}

func (r pgReader) ListProducts(ctx context.Context, f ProductFilter) ([]*product.Product, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	} else if !f.IncludeDeleted {
		add("status <> $%d", product.StatusDeleted)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const orderColumns = `id, buyer_id, total_amount, payment_method, shipping_info, status, created_at, updated_at`

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o        order.Order
		shipping []byte
	)
	if err := row.Scan(&o.ID, &o.BuyerID, &o.TotalAmount, &o.PaymentMethod, &shipping, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &o.ShippingInfo); err != nil {
			return nil, fmt.Errorf("decode shipping info: %w", err)
		}
	}
	return &o, nil
}

func (r pgReader) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*order.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r pgReader) queryOrders(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r pgReader) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT order_id, product_id, seller_id, name, quantity, price, is_discounted, type, product_type, status
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.SellerID, &it.Name, &it.Quantity, &it.Price,
			&it.IsDiscounted, &it.Type, &it.ProductType, &it.Status); err != nil {
			return err
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	return rows.Err()
}

func (r pgReader) ListOrders(ctx context.Context, buyerID string) ([]*order.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r pgReader) ListSellerOrders(ctx context.Context, sellerID string) ([]*order.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE id IN (SELECT order_id FROM order_items WHERE seller_id = $1)
		 ORDER BY created_at DESC`, sellerID)
}

const refundColumns = `id, order_id, product_id, buyer_id, seller_id, reason, refund_amount, product_type,
	purchase_date, status, seller_response_reason, seller_response_date, dispute_reason, dispute_date,
	dispute_status, dispute_resolved_at, created_at, updated_at`

func scanRefund(row rowScanner) (*refund.Request, error) {
	var (
		req                          refund.Request
		respReason, dReason, dStatus sql.NullString
		respDate, dDate, dResolvedAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.OrderID, &req.ProductID, &req.BuyerID, &req.SellerID, &req.Reason,
		&req.RefundAmount, &req.ProductType, &req.PurchaseDate, &req.Status, &respReason, &respDate,
		&dReason, &dDate, &dStatus, &dResolvedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if respDate.Valid {
		req.SellerResponse = &refund.Response{Reason: respReason.String, Date: respDate.Time}
	}
	if dDate.Valid {
		req.Dispute = &refund.Dispute{
			Reason: dReason.String,
			Date:   dDate.Time,
			Status: refund.DisputeStatus(dStatus.String),
		}
		if dResolvedAt.Valid {
			t := dResolvedAt.Time
			req.Dispute.ResolvedAt = &t
		}
	}
	return &req, nil
}

// refundArgs flattens the optional response and dispute for storage.
func refundArgs(r *refund.Request) []any {
	var (
		respReason, dReason, dStatus sql.NullString
		respDate, dDate, dResolvedAt sql.NullTime
	)
	if r.SellerResponse != nil {
		respReason = sql.NullString{String: r.SellerResponse.Reason, Valid: true}
		respDate = sql.NullTime{Time: r.SellerResponse.Date, Valid: true}
	}
	if r.Dispute != nil {
		dReason = sql.NullString{String: r.Dispute.Reason, Valid: true}
		dDate = sql.NullTime{Time: r.Dispute.Date, Valid: true}
		dStatus = sql.NullString{String: string(r.Dispute.Status), Valid: true}
		if r.Dispute.ResolvedAt != nil {
			dResolvedAt = sql.NullTime{Time: *r.Dispute.ResolvedAt, Valid: true}
		}
	}
	return []any{
		r.ID, r.OrderID, r.ProductID, r.BuyerID, r.SellerID, r.Reason, r.RefundAmount, r.ProductType,
		r.PurchaseDate, r.Status, respReason, respDate, dReason, dDate, dStatus, dResolvedAt,
		r.CreatedAt, r.UpdatedAt,
	}
}

func (r pgReader) GetRefund(ctx context.Context, id string) (*refund.Request, error) {
	req, err := scanRefund(r.q.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refund.ErrRequestNotFound
	}
	return req, err
}

func (r pgReader) ListRefunds(ctx context.Context, f RefundFilter) ([]*refund.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		where = append(where, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if f.SellerID != "" {
		args = append(args, f.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + refundColumns + ` FROM refund_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*refund.Request
	for rows.Next() {
		req, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r pgReader) GetLedger(ctx context.Context, sellerID string, p ledger.Period) (*ledger.Record, error) {
	rec := ledger.NewRecord(sellerID, p)
	err := r.q.QueryRowContext(ctx,
		`SELECT total_sales, total_units, total_revenue, monthly_revenue, refunds, updated_at
		 FROM ledger_records WHERE seller_id = $1 AND year = $2 AND month = $3`,
		sellerID, p.Year, int(p.Month),
	).Scan(&rec.TotalSales, &rec.TotalUnits, &rec.TotalRevenue, &rec.MonthlyRevenue, &rec.Refunds, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.NewRecord(sellerID, p), nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r pgReader) ListLedgerTransactions(ctx context.Context, sellerID string, p ledger.Period) ([]ledger.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price, total, date, is_discounted, kind
		 FROM ledger_transactions WHERE seller_id = $1 AND year = $2 AND month = $3 ORDER BY seq`,
		sellerID, p.Year, int(p.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx := ledger.Transaction{SellerID: sellerID, Period: p}
		if err := rows.Scan(&tx.ID, &tx.OrderID, &tx.ProductID, &tx.Quantity, &tx.Price, &tx.Total,
			&tx.Date, &tx.IsDiscounted, &tx.Kind); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

const userColumns = `id, email, password_hash, name, role, is_active, created_at, updated_at`

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r pgReader) GetUser(ctx context.Context, id string) (*user.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r pgReader) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r pgReader) ListUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const ratingColumns = `id, product_id, buyer_id, score, review, platform, created_at, updated_at`

func scanRating(row rowScanner) (*rating.Rating, error) {
	var rt rating.Rating
	err := row.Scan(&rt.ID, &rt.ProductID, &rt.BuyerID, &rt.Score, &rt.Review, &rt.Platform, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rating.ErrRatingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r pgReader) GetRating(ctx context.Context, id string) (*rating.Rating, error) {
	return scanRating(r.q.QueryRowContext(ctx, `SELECT `+ratingColumns+` FROM product_ratings WHERE id = $1`, id))
}

func (r pgReader) ListRatings(ctx context.Context, f RatingFilter) ([]*rating.Rating, error) {
	var (
		where []string
		args  []any
	)
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		where = append(where, fmt.Sprintf("buyer_id = $%d", len(args)))
	}

	query := `SELECT ` + ratingColumns + ` FROM product_ratings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*rating.Rating
	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r pgReader) ListWishlist(ctx context.Context, buyerID string) ([]wishlist.Entry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT product_id, added_at, notify_on_sale FROM wishlist_entries WHERE buyer_id = $1 ORDER BY seq`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wishlist.Entry
	for rows.Next() {
		e := wishlist.Entry{BuyerID: buyerID}
		if err := rows.Scan(&e.ProductID, &e.AddedAt, &e.NotifyOnSale); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r pgReader) ListSaleWatchers(ctx context.Context, productID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT buyer_id FROM wishlist_entries WHERE product_id = $1 AND notify_on_sale ORDER BY seq`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type pgTx struct {
	pgReader
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (t *pgTx) CreateProduct(ctx context.Context, p *product.Product) error {
	var lastUpdated sql.NullTime
	if !p.Sales.LastMonthUpdated.IsZero() {
		lastUpdated = sql.NullTime{Time: p.Sales.LastMonthUpdated, Valid: true}
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.SellerID, p.Name, p.Description, p.Price, p.OnSale, p.SalePrice, nullTime(p.SaleEndDate),
		p.Stock, p.Type, p.Category, p.Status, p.Sales.Total, p.Sales.LastMonth, lastUpdated,
		p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (t *pgTx) UpdateListing(ctx context.Context, p *product.Product) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE products SET name = $2, description = $3, price = $4, on_sale = $5, sale_price = $6,
		 sale_end_date = $7, category = $8, status = $9, updated_at = $10
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Price, p.OnSale, p.SalePrice, nullTime(p.SaleEndDate),
		p.Category, p.Status, p.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

// AdjustProduct increments counters in a single statement. The monthly
// counter restarts when at is in a different UTC month than the last update.
func (t *pgTx) AdjustProduct(ctx context.Context, productID string, adj product.Adjustment, at time.Time) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE products SET
		   stock = stock + $2,
		   sales_total = sales_total + $3,
		   sales_last_month = CASE
		     WHEN sales_last_month_updated IS NOT NULL
		      AND date_trunc('month', sales_last_month_updated AT TIME ZONE 'UTC') = date_trunc('month', $4::timestamptz AT TIME ZONE 'UTC')
		     THEN sales_last_month + $3
		     ELSE GREATEST($3, 0)
		   END,
		   sales_last_month_updated = $4,
		   updated_at = $4
		 WHERE id = $1 AND stock + $2 >= 0`,
		productID, adj.Stock, adj.Sales, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return t.stockError(ctx, productID)
}

func (t *pgTx) RestockProduct(ctx context.Context, productID string, quantity int, at time.Time) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1 AND stock + $2 >= 0`,
		productID, quantity, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return t.stockError(ctx, productID)
}

// stockError explains an update that matched no product row.
func (t *pgTx) stockError(ctx context.Context, productID string) error {
	var (
		name  string
		stock int
	)
	err := t.q.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, productID).Scan(&name, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return product.ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return &product.StockError{ProductName: name, Available: stock}
}

func (t *pgTx) CreateOrder(ctx context.Context, o *order.Order) error {
	var shipping []byte
	if o.ShippingInfo != nil {
		var err error
		if shipping, err = json.Marshal(o.ShippingInfo); err != nil {
			return err
		}
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.BuyerID, o.TotalAmount, o.PaymentMethod, shipping, o.Status, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		_, err := t.q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, position, seller_id, name, quantity, price,
			 is_discounted, type, product_type, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.ID, it.ProductID, i, it.SellerID, it.Name, it.Quantity, it.Price, it.IsDiscounted,
			it.Type, it.ProductType, it.Status)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, from, to order.Status, at time.Time) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		orderID, from, to, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return t.missingOr(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ErrOrderNotFound, orderID)
}

func (t *pgTx) SetItemStatus(ctx context.Context, orderID, productID string, from, to order.ItemStatus, at time.Time) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE order_items SET status = $4 WHERE order_id = $1 AND product_id = $2 AND status = $3`,
		orderID, productID, from, to)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := t.missingOr(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ErrOrderNotFound, orderID); !errors.Is(err, ErrConflict) {
			return err
		}
		return t.missingOr(ctx,
			`SELECT EXISTS (SELECT 1 FROM order_items WHERE order_id = $1 AND product_id = $2)`,
			order.ErrItemNotFound, orderID, productID)
	}
	_, err = t.q.ExecContext(ctx, `UPDATE orders SET updated_at = $2 WHERE id = $1`, orderID, at)
	return err
}

func (t *pgTx) LockItem(ctx context.Context, orderID, productID string) (order.ItemStatus, error) {
	var status order.ItemStatus
	err := t.q.QueryRowContext(ctx,
		`SELECT status FROM order_items WHERE order_id = $1 AND product_id = $2 FOR UPDATE`,
		orderID, productID).Scan(&status)
	if !errors.Is(err, sql.ErrNoRows) {
		return status, err
	}
	if err := t.missingOr(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ErrOrderNotFound, orderID); !errors.Is(err, ErrConflict) {
		return "", err
	}
	return "", order.ErrItemNotFound
}

// missingOr runs an EXISTS query after a compare-and-set matched no rows and
// tells a missing row (notFound) apart from a lost race (ErrConflict).
func (t *pgTx) missingOr(ctx context.Context, existsQuery string, notFound error, args ...any) error {
	var exists bool
	if err := t.q.QueryRowContext(ctx, existsQuery, args...).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return notFound
	}
	return ErrConflict
}

func (t *pgTx) CreateRefund(ctx context.Context, r *refund.Request) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO refund_requests (`+refundColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		refundArgs(r)...)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (t *pgTx) UpdateRefund(ctx context.Context, r *refund.Request, from refund.Status) error {
	args := refundArgs(r)
	res, err := t.q.ExecContext(ctx,
		`UPDATE refund_requests SET status = $2, seller_response_reason = $3, seller_response_date = $4,
		 dispute_reason = $5, dispute_date = $6, dispute_status = $7, dispute_resolved_at = $8,
		 updated_at = $9
		 WHERE id = $1 AND status = $10`,
		r.ID, r.Status, args[10], args[11], args[12], args[13], args[14], args[15], r.UpdatedAt, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return t.missingOr(ctx, `SELECT EXISTS (SELECT 1 FROM refund_requests WHERE id = $1)`, refund.ErrRequestNotFound, r.ID)
}

func (t *pgTx) EnsureLedger(ctx context.Context, sellerID string, p ledger.Period, at time.Time) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO ledger_records (seller_id, year, month, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (seller_id, year, month) DO NOTHING`,
		sellerID, p.Year, int(p.Month), at)
	return err
}

func (t *pgTx) PostLedger(ctx context.Context, tx ledger.Transaction) error {
	d := tx.Delta()
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO ledger_records (seller_id, year, month, total_sales, total_units, total_revenue,
		   monthly_revenue, refunds, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
		 ON CONFLICT (seller_id, year, month) DO UPDATE SET
		   total_sales = ledger_records.total_sales + EXCLUDED.total_sales,
		   total_units = ledger_records.total_units + EXCLUDED.total_units,
		   total_revenue = ledger_records.total_revenue + EXCLUDED.total_revenue,
		   monthly_revenue = ledger_records.monthly_revenue + EXCLUDED.monthly_revenue,
		   refunds = ledger_records.refunds + EXCLUDED.refunds,
		   updated_at = EXCLUDED.updated_at`,
		tx.SellerID, tx.Period.Year, int(tx.Period.Month), d.Sales, d.Units, d.Revenue, d.Refunds, tx.Date)
	if err != nil {
		return fmt.Errorf("post ledger record: %w", err)
	}

	_, err = t.q.ExecContext(ctx,
		`INSERT INTO ledger_transactions (id, seller_id, year, month, order_id, product_id, quantity,
		   price, total, date, is_discounted, kind)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tx.ID, tx.SellerID, tx.Period.Year, int(tx.Period.Month), tx.OrderID, tx.ProductID, tx.Quantity,
		tx.Price, tx.Total, tx.Date, tx.IsDiscounted, tx.Kind)
	if err != nil {
		return fmt.Errorf("append ledger transaction: %w", err)
	}
	return nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *user.User) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	return err
}

func (t *pgTx) DeactivateUser(ctx context.Context, id string, at time.Time) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`, id, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if err := t.missingOr(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ErrUserNotFound, id); !errors.Is(err, ErrConflict) {
		return err
	}
	return nil
}

func (t *pgTx) CreateRating(ctx context.Context, r *rating.Rating) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO product_ratings (`+ratingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.ProductID, r.BuyerID, r.Score, r.Review, r.Platform, r.CreatedAt, r.UpdatedAt)
	if isUniqueViolation(err) {
		return rating.ErrAlreadyRated
	}
	return err
}

func (t *pgTx) UpdateRating(ctx context.Context, r *rating.Rating) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE product_ratings SET score = $2, review = $3, updated_at = $4 WHERE id = $1`,
		r.ID, r.Score, r.Review, r.UpdatedAt)
	return rowsOr(res, err, rating.ErrRatingNotFound)
}

func (t *pgTx) DeleteRating(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM product_ratings WHERE id = $1`, id)
	return rowsOr(res, err, rating.ErrRatingNotFound)
}

func (t *pgTx) AddWishlistEntry(ctx context.Context, e wishlist.Entry) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO wishlist_entries (buyer_id, product_id, added_at, notify_on_sale) VALUES ($1, $2, $3, $4)`,
		e.BuyerID, e.ProductID, e.AddedAt, e.NotifyOnSale)
	if isUniqueViolation(err) {
		return wishlist.ErrAlreadyWishlisted
	}
	return err
}

func (t *pgTx) RemoveWishlistEntry(ctx context.Context, buyerID, productID string) error {
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM wishlist_entries WHERE buyer_id = $1 AND product_id = $2`, buyerID, productID)
	return rowsOr(res, err, wishlist.ErrNotInWishlist)
}

func (t *pgTx) SetWishlistNotify(ctx context.Context, buyerID, productID string, notify bool) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE wishlist_entries SET notify_on_sale = $3 WHERE buyer_id = $1 AND product_id = $2`,
		buyerID, productID, notify)
	return rowsOr(res, err, wishlist.ErrNotInWishlist)
}

// rowsOr turns a statement that touched no rows into notFound.
func rowsOr(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e Event) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.AggregateID, e.AggregateType, e.EventType, []byte(e.Data), e.Timestamp)
	return err
}
