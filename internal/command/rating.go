package command

import (
	"context"
	"errors"
	"log"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/rating"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// RateProduct records the buyer's first rating of a product they own.
func (h *Handler) RateProduct(ctx context.Context, cmd RateProduct) (*rating.Rating, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	now := h.now()

	var created *rating.Rating
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		owned, err := holdsProduct(ctx, tx, cmd.Actor.ID, p.ID)
		if err != nil {
			return err
		}
		if !owned {
			return rating.ErrNotPurchased
		}

		r, err := rating.New(newID(), p.ID, cmd.Actor.ID, p.Type, cmd.Score, cmd.Review, cmd.Platform, now)
		if err != nil {
			return err
		}
		if err := tx.CreateRating(ctx, r); err != nil {
			return err
		}
		created = r
		return emit(ctx, tx, r.ID, rating.AggregateType, rating.EventProductRated, rating.ProductRated{
			RatingID:  r.ID,
			ProductID: r.ProductID,
			BuyerID:   r.BuyerID,
			Score:     r.Score,
			Platform:  r.Platform,
			RatedAt:   now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Rating] %s rated %s with %d", created.BuyerID, created.ProductID, created.Score)
	return created, nil
}

// holdsProduct reports whether the buyer has a delivered line of the product
// that was not refunded.
func holdsProduct(ctx context.Context, tx store.Tx, buyerID, productID string) (bool, error) {
	orders, err := tx.ListOrders(ctx, buyerID)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		it, err := o.Item(productID)
		if errors.Is(err, order.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		switch it.Status {
		case order.ItemCompleted, order.ItemRefundRequested, order.ItemRefundRejected:
			return true, nil
		}
	}
	return false, nil
}

func (h *Handler) UpdateRating(ctx context.Context, cmd UpdateRating) (*rating.Rating, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	now := h.now()

	var revised *rating.Rating
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRating(ctx, cmd.RatingID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(cmd.Actor, auth.Require(user.RoleBuyer).OwnedBy(r.BuyerID), rating.ErrRatingNotFound); err != nil {
			return err
		}
		if err := r.Revise(cmd.Score, cmd.Review, now); err != nil {
			return err
		}
		if err := tx.UpdateRating(ctx, r); err != nil {
			return err
		}
		revised = r
		return emit(ctx, tx, r.ID, rating.AggregateType, rating.EventRatingRevised, rating.RatingRevised{
			RatingID:  r.ID,
			ProductID: r.ProductID,
			Score:     r.Score,
			RevisedAt: now,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return revised, nil
}

// DeleteRating removes a rating. Admins may remove any rating.
func (h *Handler) DeleteRating(ctx context.Context, cmd DeleteRating) error {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer, user.RoleAdmin)); err != nil {
		return err
	}
	now := h.now()

	return h.store.WithinTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRating(ctx, cmd.RatingID)
		if err != nil {
			return err
		}
		if cmd.Actor.Role != user.RoleAdmin && r.BuyerID != cmd.Actor.ID {
			return rating.ErrRatingNotFound
		}
		if err := tx.DeleteRating(ctx, r.ID); err != nil {
			return err
		}
		return emit(ctx, tx, r.ID, rating.AggregateType, rating.EventRatingDeleted, rating.RatingDeleted{
			RatingID:  r.ID,
			ProductID: r.ProductID,
			BuyerID:   r.BuyerID,
			DeletedAt: now,
		}, now)
	})
}
