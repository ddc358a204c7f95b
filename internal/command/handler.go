package command

import (
	"context"
	"time"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/cache"
	"github.com/example/game-marketplace/internal/infrastructure/idempotency"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/google/uuid"
)

// Handler runs every state-changing operation. Each operation commits in a
// single store transaction together with the events it emits.
type Handler struct {
	store store.Store
	carts cache.CartStore
	keys  idempotency.Store
	now   func() time.Time
}

func NewHandler(s store.Store, carts cache.CartStore, keys idempotency.Store) *Handler {
	return &Handler{
		store: s,
		carts: carts,
		keys:  keys,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	return uuid.New().String()
}

// emit appends a domain event to the outbox inside tx.
func emit(ctx context.Context, tx store.Tx, aggregateID, aggregateType, eventType string, data any, at time.Time) error {
	evt, err := store.NewEvent(aggregateID, aggregateType, eventType, data, at)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, evt)
}

// authorizeOwner checks the caller's role first and ownership second. A
// caller with the right role who does not own the record gets notFound, so
// records of other users are indistinguishable from missing ones.
func authorizeOwner(p auth.Principal, c auth.Capability, notFound error) error {
	if err := auth.Authorize(p, auth.Require(c.Roles...)); err != nil {
		return err
	}
	if err := auth.Authorize(p, c); err != nil {
		return notFound
	}
	return nil
}

// moveItem applies action to one line of o, both in tx and in o itself.
func moveItem(ctx context.Context, tx store.Tx, o *order.Order, productID string, action order.ItemAction, actor user.Role, at time.Time) error {
	item, err := o.Item(productID)
	if err != nil {
		return err
	}
	from := item.Status
	next, err := order.TransitionItem(from, action, actor)
	if err != nil {
		return err
	}
	if err := tx.SetItemStatus(ctx, o.ID, productID, from, next, at); err != nil {
		return err
	}
	item.Status = next

	return emit(ctx, tx, o.ID, order.AggregateType, order.EventItemStatusChanged, order.ItemStatusChanged{
		OrderID:   o.ID,
		ProductID: productID,
		From:      from,
		To:        next,
		ChangedAt: at,
	}, at)
}
