package wishlist

import (
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
)

var (
	ErrAlreadyWishlisted = apperr.New(apperr.ErrInvalidState, "Product already in wishlist")
	ErrNotInWishlist     = apperr.New(apperr.ErrNotFound, "Product not found in wishlist")
)

// Entry is one product a buyer is watching. NotifyOnSale starts enabled.
type Entry struct {
	BuyerID      string    `json:"-"`
	ProductID    string    `json:"product_id"`
	AddedAt      time.Time `json:"added_at"`
	NotifyOnSale bool      `json:"notify_on_sale"`
}

func NewEntry(buyerID, productID string, now time.Time) Entry {
	return Entry{BuyerID: buyerID, ProductID: productID, AddedAt: now, NotifyOnSale: true}
}
