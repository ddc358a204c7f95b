package product

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventProductListed  = "ProductListed"
	EventProductUpdated = "ProductUpdated"
)

type ProductListed struct {
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Name      string          `json:"name"`
	Type      Type            `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	ListedAt  time.Time       `json:"listed_at"`
}

type ProductUpdated struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	OnSale    bool            `json:"on_sale"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Status    Status          `json:"status"`

	// SaleStarted is set when the update put a product on sale that was
	// not on sale before.
	SaleStarted bool      `json:"sale_started,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
