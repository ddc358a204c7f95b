package command

import (
	"time"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/shopspring/decimal"
)

// Product Commands
type CreateProduct struct {
	Actor       auth.Principal   `json:"-"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	OnSale      bool             `json:"on_sale"`
	SalePrice   decimal.Decimal  `json:"sale_price"`
	SaleEndDate *time.Time       `json:"sale_end_date"`
	Stock       int              `json:"stock"`
	Type        product.Type     `json:"type"`
	Category    product.Category `json:"category"`
}

// UpdateProduct replaces the listing fields of a product. Stock and sales
// counters cannot be set here.
type UpdateProduct struct {
	Actor       auth.Principal   `json:"-"`
	ProductID   string           `json:"-"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	OnSale      bool             `json:"on_sale"`
	SalePrice   decimal.Decimal  `json:"sale_price"`
	SaleEndDate *time.Time       `json:"sale_end_date"`
	Category    product.Category `json:"category"`
	Status      product.Status   `json:"status"`
}

type RestockProduct struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"-"`
	Quantity  int            `json:"quantity"`
}

// Cart Commands
type AddToCart struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"product_id"`
	Quantity  int            `json:"quantity"`
}

type RemoveFromCart struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"product_id"`
}

// UpdateCartItem sets the quantity of a line already in the cart.
type UpdateCartItem struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"-"`
	Quantity  int            `json:"quantity"`
}

type ClearCart struct {
	Actor auth.Principal `json:"-"`
}

// Wishlist Commands
type AddToWishlist struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"product_id"`
}

type RemoveFromWishlist struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"-"`
}

// ToggleWishlistNotify flips sale notifications for one entry.
type ToggleWishlistNotify struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"-"`
}

// Rating Commands
type RateProduct struct {
	Actor     auth.Principal `json:"-"`
	ProductID string         `json:"-"`
	Score     int            `json:"rating"`
	Review    string         `json:"review"`
	Platform  string         `json:"platform"`
}

// UpdateRating keeps the current score when Score is zero.
type UpdateRating struct {
	Actor    auth.Principal `json:"-"`
	RatingID string         `json:"-"`
	Score    int            `json:"rating"`
	Review   string         `json:"review"`
}

type DeleteRating struct {
	Actor    auth.Principal `json:"-"`
	RatingID string         `json:"-"`
}

// Order Commands
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Checkout turns the buyer's cart into an order.
type Checkout struct {
	Actor          auth.Principal      `json:"-"`
	PaymentMethod  order.PaymentMethod `json:"payment_method"`
	ShippingInfo   *order.ShippingInfo `json:"shipping_info"`
	IdempotencyKey string              `json:"-"`
}

// CreateOrder places an order for explicit items without touching the cart.
type CreateOrder struct {
	Actor          auth.Principal      `json:"-"`
	Items          []LineItem          `json:"items"`
	PaymentMethod  order.PaymentMethod `json:"payment_method"`
	ShippingInfo   *order.ShippingInfo `json:"shipping_info"`
	IdempotencyKey string              `json:"-"`
}

type UpdateOrderStatus struct {
	Actor   auth.Principal `json:"-"`
	OrderID string         `json:"-"`
	Status  order.Status   `json:"status"`
}

// Refund Commands
type RequestRefund struct {
	Actor     auth.Principal `json:"-"`
	OrderID   string         `json:"order_id"`
	ProductID string         `json:"product_id"`
	Reason    string         `json:"reason"`
}

type RespondToRefund struct {
	Actor     auth.Principal `json:"-"`
	RequestID string         `json:"-"`
	Action    refund.Action  `json:"action"`
	Reason    string         `json:"reason"`
}

type DisputeRefund struct {
	Actor     auth.Principal `json:"-"`
	RequestID string         `json:"-"`
	Reason    string         `json:"reason"`
}

// ResolveDispute carries the admin decision, "approve" or "reject".
type ResolveDispute struct {
	Actor     auth.Principal `json:"-"`
	RequestID string         `json:"-"`
	Decision  string         `json:"decision"`
}

// User Commands
type RegisterUser struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Name     string    `json:"name"`
	Role     user.Role `json:"role"`
}

type DeleteUser struct {
	Actor  auth.Principal `json:"-"`
	UserID string         `json:"-"`
}
