package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventItemStatusChanged  = "OrderItemStatusChanged"
)

type OrderPlaced struct {
	OrderID       string          `json:"order_id"`
	BuyerID       string          `json:"buyer_id"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PlacedAt      time.Time       `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

type ItemStatusChanged struct {
	OrderID   string     `json:"order_id"`
	ProductID string     `json:"product_id"`
	From      ItemStatus `json:"from"`
	To        ItemStatus `json:"to"`
	ChangedAt time.Time  `json:"changed_at"`
}
