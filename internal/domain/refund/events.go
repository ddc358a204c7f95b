package refund

import (
	"time"

	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/shopspring/decimal"
)

const (
	EventRefundRequested      = "RefundRequested"
	EventRefundStatusChanged  = "RefundStatusChanged"
	EventRefundWindowExceeded = "RefundWindowExceeded"
)

type RefundRequested struct {
	RequestID   string          `json:"request_id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Status      Status          `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
}

type RefundStatusChanged struct {
	RequestID string          `json:"request_id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	BuyerID   string          `json:"buyer_id"`
	SellerID  string          `json:"seller_id"`
	Amount    decimal.Decimal `json:"amount"`
	From      Status          `json:"from"`
	To        Status          `json:"to"`
	Reason    string          `json:"reason,omitempty"`
	ChangedAt time.Time       `json:"changed_at"`
}

type RefundWindowExceeded struct {
	OrderID     string        `json:"order_id"`
	ProductID   string        `json:"product_id"`
	BuyerID     string        `json:"buyer_id"`
	ProductType product.Type  `json:"product_type"`
	Elapsed     time.Duration `json:"elapsed"`
	RejectedAt  time.Time     `json:"rejected_at"`
}
