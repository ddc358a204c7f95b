package command

import (
	"context"
	"log"
	"time"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/store"
)

// UpdateOrderStatus moves an order along PENDING → PROCESSING → COMPLETED,
// or cancels it. Completing fulfils every pending line. Cancelling refunds
// every line that is not already closed and gives back stock, sales and
// revenue for it.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleSeller, user.RoleAdmin)); err != nil {
		return nil, err
	}
	now := h.now()

	var updated *order.Order
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if cmd.Actor.Role == user.RoleSeller && !o.HasSeller(cmd.Actor.ID) {
			return order.ErrOrderNotFound
		}

		from := o.Status
		next, err := order.TransitionOrder(from, cmd.Status, cmd.Actor.Role)
		if err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, o.ID, from, next, now); err != nil {
			return err
		}
		o.Status = next
		o.UpdatedAt = now

		switch next {
		case order.StatusCompleted:
			if err := fulfil(ctx, tx, o, cmd.Actor.Role, now); err != nil {
				return err
			}
		case order.StatusCancelled:
			if err := cancel(ctx, tx, o, cmd.Actor.Role, now); err != nil {
				return err
			}
		}

		updated = o
		return emit(ctx, tx, o.ID, order.AggregateType, order.EventOrderStatusChanged, order.OrderStatusChanged{
			OrderID:   o.ID,
			From:      from,
			To:        next,
			ChangedAt: now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Fulfilment] Order %s is now %s (%s %s)", updated.ID, updated.Status, cmd.Actor.Role, cmd.Actor.ID)
	return updated, nil
}

func fulfil(ctx context.Context, tx store.Tx, o *order.Order, actor user.Role, now time.Time) error {
	for _, it := range o.Items {
		if it.Status != order.ItemPending {
			continue
		}
		if err := moveItem(ctx, tx, o, it.ProductID, order.ItemFulfil, actor, now); err != nil {
			return err
		}
	}
	return nil
}

func cancel(ctx context.Context, tx store.Tx, o *order.Order, actor user.Role, now time.Time) error {
	for _, it := range o.Items {
		if !order.CanTransitionItem(it.Status, order.ItemCancel, actor) {
			continue
		}
		if err := moveItem(ctx, tx, o, it.ProductID, order.ItemCancel, actor, now); err != nil {
			return err
		}
		if err := reverseSale(ctx, tx, o, it, now); err != nil {
			return err
		}
	}
	return nil
}
