package query

import (
	"time"

	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/shopspring/decimal"
)

// CartItemView is a cart line priced at the moment it is read.
type CartItemView struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Type         product.Type    `json:"type"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	IsDiscounted bool            `json:"is_discounted"`
	Available    bool            `json:"available"`
}

// CartView is the buyer's cart with current prices. Unavailable lines are
// listed but left out of Total.
type CartView struct {
	BuyerID string          `json:"buyer_id"`
	Items   []CartItemView  `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

// LedgerView is one seller-month with its full transaction log.
type LedgerView struct {
	Record       *ledger.Record       `json:"record"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// MonthSales summarises one ledger record.
type MonthSales struct {
	Period  ledger.Period   `json:"period"`
	Sales   int             `json:"sales"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
	Refunds int             `json:"refunds"`
}

// SellerStats backs the seller dashboard.
type SellerStats struct {
	SellerID         string               `json:"seller_id"`
	TotalProducts    int                  `json:"total_products"`
	CurrentMonth     MonthSales           `json:"current_month"`
	PreviousMonth    MonthSales           `json:"previous_month"`
	TypeDistribution map[product.Type]int `json:"type_distribution"`
}

func monthSales(r *ledger.Record) MonthSales {
	return MonthSales{
		Period:  r.Period,
		Sales:   r.TotalSales,
		Units:   r.TotalUnits,
		Revenue: r.MonthlyRevenue,
		Refunds: r.Refunds,
	}
}

// RatingPage is one page of a product's ratings. Summary covers all of them.
type RatingPage struct {
	Ratings      []*rating.Rating `json:"ratings"`
	Summary      rating.Summary   `json:"summary"`
	CurrentPage  int              `json:"current_page"`
	TotalPages   int              `json:"total_pages"`
	TotalRatings int              `json:"total_ratings"`
}

// WishlistItemView is a wishlist entry with the product's current price.
type WishlistItemView struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Type         product.Type    `json:"type"`
	Price        decimal.Decimal `json:"price"`
	IsDiscounted bool            `json:"is_discounted"`
	Available    bool            `json:"available"`
	NotifyOnSale bool            `json:"notify_on_sale"`
	AddedAt      time.Time       `json:"added_at"`
}
