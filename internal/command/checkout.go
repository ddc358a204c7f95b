package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/cart"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/idempotency"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/example/game-marketplace/internal/stats"
)

// CheckoutResult is a placed order plus the digital items delivered with it.
type CheckoutResult struct {
	Order        *order.Order `json:"order"`
	DigitalItems []order.Item `json:"digital_items"`
	// Replayed is set when an earlier request with the same idempotency key
	// already placed the order.
	Replayed bool `json:"replayed,omitempty"`
}

func newCheckoutResult(o *order.Order, replayed bool) *CheckoutResult {
	res := &CheckoutResult{Order: o, DigitalItems: []order.Item{}, Replayed: replayed}
	for _, it := range o.Items {
		if it.Type == order.ItemDigital {
			res.DigitalItems = append(res.DigitalItems, it)
		}
	}
	return res
}

// Checkout places an order for everything in the buyer's cart and clears it.
func (h *Handler) Checkout(ctx context.Context, cmd Checkout) (*CheckoutResult, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}

	res, err := h.idempotent(ctx, cmd.IdempotencyKey, func() (*order.Order, error) {
		c, err := h.carts.Get(ctx, cmd.Actor.ID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		if c.IsEmpty() {
			return nil, cart.ErrEmptyCart
		}

		lines := make([]LineItem, len(c.Items))
		for i, it := range c.Items {
			lines[i] = LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		return h.placeOrder(ctx, cmd.Actor.ID, lines, cmd.PaymentMethod, cmd.ShippingInfo)
	})
	if err != nil {
		return nil, err
	}

	// The order is committed; a stale cart is only an annoyance.
	if !res.Replayed {
		if err := h.carts.Delete(ctx, cmd.Actor.ID); err != nil {
			log.Printf("[Checkout] Failed to clear cart for buyer %s after order %s: %v", cmd.Actor.ID, res.Order.ID, err)
		}
	}
	return res, nil
}

// CreateOrder places an order for explicit items.
func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrder) (*CheckoutResult, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	return h.idempotent(ctx, cmd.IdempotencyKey, func() (*order.Order, error) {
		return h.placeOrder(ctx, cmd.Actor.ID, cmd.Items, cmd.PaymentMethod, cmd.ShippingInfo)
	})
}

// idempotent runs place at most once per key. A retry after success returns
// the original order; a retry while the first attempt runs is refused.
func (h *Handler) idempotent(ctx context.Context, key string, place func() (*order.Order, error)) (*CheckoutResult, error) {
	if key == "" || h.keys == nil {
		o, err := place()
		if err != nil {
			return nil, err
		}
		return newCheckoutResult(o, false), nil
	}

	err := h.keys.Claim(ctx, key, h.now())
	if errors.Is(err, idempotency.ErrKeyExists) {
		return h.replay(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	o, err := place()
	if err != nil {
		if relErr := h.keys.Release(ctx, key); relErr != nil {
			log.Printf("[Checkout] Failed to release idempotency key %s: %v", key, relErr)
		}
		return nil, err
	}

	if err := h.keys.Complete(ctx, key, o.ID); err != nil {
		log.Printf("[Checkout] Failed to record order %s for idempotency key %s: %v", o.ID, key, err)
	}
	return newCheckoutResult(o, false), nil
}

func (h *Handler) replay(ctx context.Context, key string) (*CheckoutResult, error) {
	rec, err := h.keys.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Status != idempotency.StatusCompleted {
		return nil, idempotency.ErrInProgress
	}

	o, err := h.store.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	log.Printf("[Checkout] Duplicate request for idempotency key %s returned order %s", key, o.ID)
	return newCheckoutResult(o, true), nil
}

// mergeLines validates quantities and folds repeated products into one line,
// keeping the order of first appearance.
func mergeLines(lines []LineItem) ([]LineItem, error) {
	if len(lines) == 0 {
		return nil, order.ErrEmptyOrder
	}
	merged := make([]LineItem, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, product.ErrProductUnavailable
		}
		if l.Quantity <= 0 {
			return nil, order.ErrInvalidQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}

// placeOrder is the checkout core shared by cart and direct orders. Order
// creation, stock and sales counters, ledger postings and events commit
// together or not at all.
func (h *Handler) placeOrder(ctx context.Context, buyerID string, lines []LineItem, method order.PaymentMethod, shipping *order.ShippingInfo) (*order.Order, error) {
	lines, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}
	now := h.now()

	var placed *order.Order
	err = h.store.WithinTx(ctx, func(tx store.Tx) error {
		items, err := priceLines(ctx, tx, lines, now)
		if err != nil {
			return err
		}

		o, err := order.New(newID(), buyerID, items, method, shipping, now)
		if err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, it := range o.Items {
			if _, err := stats.Apply(ctx, tx, it.ProductID, it.Quantity, false, now); err != nil {
				return err
			}
		}

		if err := postSales(ctx, tx, o, now); err != nil {
			return err
		}

		placed = o
		return emit(ctx, tx, o.ID, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
			OrderID:       o.ID,
			BuyerID:       o.BuyerID,
			Items:         o.Items,
			Total:         o.TotalAmount,
			PaymentMethod: o.PaymentMethod,
			PlacedAt:      now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Checkout] Order %s placed by buyer %s: %d items, total %s", placed.ID, buyerID, len(placed.Items), placed.TotalAmount.StringFixed(2))
	return placed, nil
}

// priceLines checks availability and snapshots the unit price of each line.
func priceLines(ctx context.Context, tx store.Tx, lines []LineItem, now time.Time) ([]order.Item, error) {
	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		p, err := tx.GetProduct(ctx, l.ProductID)
		if errors.Is(err, product.ErrProductNotFound) {
			return nil, product.ErrProductUnavailable
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive() {
			return nil, product.ErrProductUnavailable
		}
		if p.IsPhysical() && l.Quantity > p.Stock {
			return nil, &product.StockError{ProductName: p.Name, Available: p.Stock}
		}

		price, discounted := p.UnitPrice(now)
		items = append(items, order.Item{
			ProductID:    p.ID,
			SellerID:     p.SellerID,
			Name:         p.Name,
			Quantity:     l.Quantity,
			Price:        price,
			IsDiscounted: discounted,
			ProductType:  p.Type,
		})
	}
	return items, nil
}

// postSales books one ledger transaction per line in the current month of
// each seller, and makes sure the seller's previous month has a record.
func postSales(ctx context.Context, tx store.Tx, o *order.Order, now time.Time) error {
	period := ledger.PeriodOf(now)
	sellers, grouped := o.ItemsBySeller()
	for _, sellerID := range sellers {
		if err := tx.EnsureLedger(ctx, sellerID, period.Previous(), now); err != nil {
			return fmt.Errorf("seed ledger: %w", err)
		}
		for _, it := range grouped[sellerID] {
			sale := ledger.NewSale(newID(), sellerID, o.ID, it.ProductID, it.Quantity, it.Price, it.IsDiscounted, now)
			if err := post(ctx, tx, sale); err != nil {
				return err
			}
		}
	}
	return nil
}

func post(ctx context.Context, tx store.Tx, t ledger.Transaction) error {
	if err := tx.PostLedger(ctx, t); err != nil {
		return fmt.Errorf("post ledger: %w", err)
	}
	return emit(ctx, tx, t.SellerID+":"+t.Period.String(), ledger.AggregateType, ledger.EventLedgerPosted, ledger.LedgerPosted{
		TransactionID: t.ID,
		SellerID:      t.SellerID,
		Period:        t.Period,
		Kind:          t.Kind,
		Quantity:      t.Quantity,
		Total:         t.Total,
	}, t.Date)
}
