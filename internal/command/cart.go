package command

import (
	"context"
	"errors"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/cart"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/user"
)

// AddToCart puts units of an active product in the buyer's cart. Physical
// products cannot be carted beyond their current stock.
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Cart, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	if cmd.ProductID == "" {
		return nil, cart.ErrInvalidProduct
	}
	if cmd.Quantity <= 0 {
		return nil, cart.ErrInvalidQuantity
	}

	p, err := h.store.GetProduct(ctx, cmd.ProductID)
	if errors.Is(err, product.ErrProductNotFound) {
		return nil, product.ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, product.ErrProductUnavailable
	}

	c, err := h.carts.Get(ctx, cmd.Actor.ID)
	if err != nil {
		return nil, err
	}
	if err := c.Add(p.ID, cmd.Quantity, h.now()); err != nil {
		return nil, err
	}
	if p.IsPhysical() {
		for _, it := range c.Items {
			if it.ProductID == p.ID && it.Quantity > p.Stock {
				return nil, &product.StockError{ProductName: p.Name, Available: p.Stock}
			}
		}
	}

	if err := h.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (*cart.Cart, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	c, err := h.carts.Get(ctx, cmd.Actor.ID)
	if err != nil {
		return nil, err
	}
	if err := c.Remove(cmd.ProductID, h.now()); err != nil {
		return nil, err
	}
	if err := h.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCartItem sets a cart line to an exact quantity, bounded by stock for
// physical products.
func (h *Handler) UpdateCartItem(ctx context.Context, cmd UpdateCartItem) (*cart.Cart, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	if cmd.Quantity <= 0 {
		return nil, cart.ErrInvalidQuantity
	}

	c, err := h.carts.Get(ctx, cmd.Actor.ID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(cmd.ProductID, cmd.Quantity, h.now()); err != nil {
		return nil, err
	}

	p, err := h.store.GetProduct(ctx, cmd.ProductID)
	if errors.Is(err, product.ErrProductNotFound) {
		return nil, product.ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, product.ErrProductUnavailable
	}
	if p.IsPhysical() && cmd.Quantity > p.Stock {
		return nil, &product.StockError{ProductName: p.Name, Available: p.Stock}
	}

	if err := h.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) (*cart.Cart, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	if err := h.carts.Delete(ctx, cmd.Actor.ID); err != nil {
		return nil, err
	}
	return cart.New(cmd.Actor.ID), nil
}
