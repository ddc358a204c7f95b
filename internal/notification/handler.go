package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/email"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

// Mailer delivers the emails the notifier sends. *email.Service implements it.
type Mailer interface {
	SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []email.OrderItem) error
	SendRefundNotice(to string, n email.RefundNotice) error
	SendSaleAlert(to string, a email.SaleAlert) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	store  store.Reader
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, s store.Reader) *Handler {
	return &Handler{
		mailer: mailer,
		store:  s,
	}
}

// HandleEvent processes an event from Kafka. Events that need no email are
// ignored. Recipients that no longer exist are skipped so a deleted account
// cannot block the partition.
func (h *Handler) HandleEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case order.EventOrderPlaced:
		return h.handleOrderPlaced(ctx, event)
	case refund.EventRefundRequested:
		return h.handleRefundRequested(ctx, event)
	case refund.EventRefundStatusChanged:
		return h.handleRefundStatusChanged(ctx, event)
	case product.EventProductUpdated:
		return h.handleProductUpdated(ctx, event)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, event store.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderPlaced event for order %s, buyer %s", e.OrderID, e.BuyerID)

	to, err := h.emailOf(ctx, e.BuyerID)
	if err != nil || to == "" {
		return err
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Digital:   item.Type == order.ItemDigital,
		}
	}

	if err := h.mailer.SendOrderConfirmation(to, e.OrderID, e.Total, items); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", to, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", to, e.OrderID)
	return nil
}

func (h *Handler) handleRefundRequested(ctx context.Context, event store.Event) error {
	var e refund.RefundRequested
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal RefundRequested event: %v", err)
		return err
	}

	to, err := h.emailOf(ctx, e.SellerID)
	if err != nil || to == "" {
		return err
	}
	return h.sendRefundNotice(to, email.RefundNotice{
		Headline:    "New refund request",
		RequestID:   e.RequestID,
		OrderID:     e.OrderID,
		ProductName: h.productName(ctx, e.ProductID),
		Amount:      e.Amount,
		Status:      string(e.Status),
		Reason:      e.Reason,
	})
}

func (h *Handler) handleRefundStatusChanged(ctx context.Context, event store.Event) error {
	var e refund.RefundStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal RefundStatusChanged event: %v", err)
		return err
	}

	notice := email.RefundNotice{
		RequestID:   e.RequestID,
		OrderID:     e.OrderID,
		ProductName: h.productName(ctx, e.ProductID),
		Amount:      e.Amount,
		Status:      string(e.To),
		Reason:      e.Reason,
	}

	var recipients []string
	switch e.To {
	case refund.StatusAutoAccepted, refund.StatusSellerAccepted, refund.StatusAdminAccepted:
		notice.Headline = "Your refund was approved"
		recipients = append(recipients, e.BuyerID)
	case refund.StatusSellerRejected, refund.StatusAdminRejected:
		notice.Headline = "Your refund was declined"
		recipients = append(recipients, e.BuyerID)
	case refund.StatusDisputed:
		notice.Headline = "A refund decision is being disputed"
		recipients = append(recipients, e.SellerID)
	default:
		return nil
	}
	if e.From == refund.StatusDisputed {
		recipients = append(recipients, e.SellerID)
	}

	for _, id := range recipients {
		to, err := h.emailOf(ctx, id)
		if err != nil {
			return err
		}
		if to == "" {
			continue
		}
		if err := h.sendRefundNotice(to, notice); err != nil {
			return err
		}
	}
	return nil
}

// handleProductUpdated alerts wishlist watchers when a sale starts.
func (h *Handler) handleProductUpdated(ctx context.Context, event store.Event) error {
	var e product.ProductUpdated
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal ProductUpdated event: %v", err)
		return err
	}
	if !e.SaleStarted {
		return nil
	}

	watchers, err := h.store.ListSaleWatchers(ctx, e.ProductID)
	if err != nil {
		return err
	}
	alert := email.SaleAlert{ProductID: e.ProductID, ProductName: e.Name, Price: e.Price, SalePrice: e.SalePrice}
	for _, id := range watchers {
		to, err := h.emailOf(ctx, id)
		if err != nil {
			return err
		}
		if to == "" {
			continue
		}
		if err := h.mailer.SendSaleAlert(to, alert); err != nil {
			log.Printf("[Notifier] Failed to send email to %s: %v", to, err)
			return err
		}
	}
	log.Printf("[Notifier] Sale alert for %s sent to %d watchers", e.ProductID, len(watchers))
	return nil
}

func (h *Handler) sendRefundNotice(to string, n email.RefundNotice) error {
	if err := h.mailer.SendRefundNotice(to, n); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", to, err)
		return err
	}
	log.Printf("[Notifier] Refund notice (%s) sent to %s for request %s", n.Status, to, n.RequestID)
	return nil
}

// emailOf returns "" for users that no longer exist.
func (h *Handler) emailOf(ctx context.Context, userID string) (string, error) {
	u, err := h.store.GetUser(ctx, userID)
	if errors.Is(err, user.ErrUserNotFound) {
		log.Printf("[Notifier] User not found: %s", userID)
		return "", nil
	}
	if err != nil {
		log.Printf("[Notifier] Error getting user %s: %v", userID, err)
		return "", err
	}
	return u.Email, nil
}

func (h *Handler) productName(ctx context.Context, productID string) string {
	p, err := h.store.GetProduct(ctx, productID)
	if err != nil {
		return productID
	}
	return p.Name
}

var _ Mailer = (*email.Service)(nil)
