package cart

import (
	"slices"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
)

var (
	ErrInvalidQuantity = apperr.New(apperr.ErrValidation, "quantity must be positive")
	ErrInvalidProduct  = apperr.New(apperr.ErrValidation, "product_id is required")
	ErrItemNotInCart   = apperr.New(apperr.ErrNotFound, "item not in cart")
	ErrEmptyCart       = apperr.New(apperr.ErrValidation, "Cart is empty")
)

type CartItem struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart holds what a buyer intends to purchase. Prices are not stored here;
// they are snapshotted at checkout.
type Cart struct {
	BuyerID   string     `json:"buyer_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func New(buyerID string) *Cart {
	return &Cart{BuyerID: buyerID, Items: []CartItem{}}
}

// Add puts quantity units of a product in the cart, merging with an
// existing line for the same product.
func (c *Cart) Add(productID string, quantity int, now time.Time) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.UpdatedAt = now
			return nil
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity, AddedAt: now})
	c.UpdatedAt = now
	return nil
}

// SetQuantity replaces the quantity of a line already in the cart.
func (c *Cart) SetQuantity(productID string, quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i := slices.IndexFunc(c.Items, func(item CartItem) bool { return item.ProductID == productID })
	if i < 0 {
		return ErrItemNotInCart
	}
	c.Items[i].Quantity = quantity
	c.UpdatedAt = now
	return nil
}

func (c *Cart) Remove(productID string, now time.Time) error {
	i := slices.IndexFunc(c.Items, func(item CartItem) bool { return item.ProductID == productID })
	if i < 0 {
		return ErrItemNotInCart
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	c.UpdatedAt = now
	return nil
}

func (c *Cart) Clear(now time.Time) {
	c.Items = []CartItem{}
	c.UpdatedAt = now
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }
