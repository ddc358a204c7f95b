package command

import (
	"context"
	"errors"
	"slices"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/domain/wishlist"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// AddToWishlist starts watching an active product with sale alerts on.
func (h *Handler) AddToWishlist(ctx context.Context, cmd AddToWishlist) (*wishlist.Entry, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	e := wishlist.NewEntry(cmd.Actor.ID, cmd.ProductID, h.now())

	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if errors.Is(err, product.ErrProductNotFound) {
			return product.ErrProductUnavailable
		}
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return product.ErrProductUnavailable
		}
		return tx.AddWishlistEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (h *Handler) RemoveFromWishlist(ctx context.Context, cmd RemoveFromWishlist) error {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return err
	}
	return h.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.RemoveWishlistEntry(ctx, cmd.Actor.ID, cmd.ProductID)
	})
}

// ToggleWishlistNotify flips the sale alert flag of one entry and returns it.
func (h *Handler) ToggleWishlistNotify(ctx context.Context, cmd ToggleWishlistNotify) (*wishlist.Entry, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}

	var toggled *wishlist.Entry
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		entries, err := tx.ListWishlist(ctx, cmd.Actor.ID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(entries, func(e wishlist.Entry) bool { return e.ProductID == cmd.ProductID })
		if i < 0 {
			return wishlist.ErrNotInWishlist
		}
		e := entries[i]
		e.NotifyOnSale = !e.NotifyOnSale
		if err := tx.SetWishlistNotify(ctx, e.BuyerID, e.ProductID, e.NotifyOnSale); err != nil {
			return err
		}
		toggled = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toggled, nil
}
