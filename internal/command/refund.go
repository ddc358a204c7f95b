package command

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/auth"
	"github.com/example/game-marketplace/internal/domain/ledger"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/refund"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/example/game-marketplace/internal/stats"
)

// RequestRefund opens a refund for one completed line of the buyer's order.
// A line carries at most one live claim: a new request is refused while an
// earlier request on the same line is disputed.
//
// Past the refund window no request is created: the line is marked
// refund_rejected, that change is committed, and a *refund.WindowExceededError
// is returned. Digital games inside the window are refunded at once.
func (h *Handler) RequestRefund(ctx context.Context, cmd RequestRefund) (*refund.Request, error) {
	if err := auth.Authorize(cmd.Actor, auth.Require(user.RoleBuyer)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, refund.ErrReasonRequired
	}
	now := h.now()

	var (
		created   *refund.Request
		windowErr error
	)
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(cmd.Actor, auth.Require(user.RoleBuyer).OwnedBy(o.BuyerID), order.ErrOrderNotFound); err != nil {
			return err
		}
		item, err := o.Item(cmd.ProductID)
		if err != nil {
			return err
		}
		status, err := tx.LockItem(ctx, o.ID, item.ProductID)
		if err != nil {
			return err
		}
		if status != order.ItemCompleted {
			return refund.ErrNotEligible
		}
		if err := ensureNoDispute(ctx, tx, o.ID, item.ProductID, ""); err != nil {
			return err
		}

		if err := refund.CheckWindow(item.ProductType, o.CreatedAt, now); err != nil {
			windowErr = err
			return h.rejectByWindow(ctx, tx, o, *item, err, now)
		}

		r, err := refund.New(newID(), o, *item, cmd.Reason, now)
		if err != nil {
			return err
		}
		if err := tx.CreateRefund(ctx, r); err != nil {
			return err
		}
		if err := moveItem(ctx, tx, o, r.ProductID, order.ItemRequestRefund, user.RoleBuyer, now); err != nil {
			return err
		}
		if err := emit(ctx, tx, r.ID, refund.AggregateType, refund.EventRefundRequested, refund.RefundRequested{
			RequestID:   r.ID,
			OrderID:     r.OrderID,
			ProductID:   r.ProductID,
			BuyerID:     r.BuyerID,
			SellerID:    r.SellerID,
			Amount:      r.RefundAmount,
			Reason:      r.Reason,
			Status:      r.Status,
			RequestedAt: now,
		}, now); err != nil {
			return err
		}

		if r.ProductType.IsDigital() {
			if err := h.advance(ctx, tx, r, refund.ActionAutoAccept, auth.System, "", now); err != nil {
				return err
			}
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if windowErr != nil {
		log.Printf("[Refund] Rejected request for order %s product %s: %v", cmd.OrderID, cmd.ProductID, windowErr)
		return nil, windowErr
	}

	log.Printf("[Refund] Request %s for order %s is %s", created.ID, created.OrderID, created.Status)
	return created, nil
}

func (h *Handler) rejectByWindow(ctx context.Context, tx store.Tx, o *order.Order, item order.Item, cause error, now time.Time) error {
	if err := moveItem(ctx, tx, o, item.ProductID, order.ItemDenyRefund, user.RoleSystem, now); err != nil {
		return err
	}
	var elapsed time.Duration
	var wErr *refund.WindowExceededError
	if errors.As(cause, &wErr) {
		elapsed = wErr.Elapsed
	}
	return emit(ctx, tx, o.ID, order.AggregateType, refund.EventRefundWindowExceeded, refund.RefundWindowExceeded{
		OrderID:     o.ID,
		ProductID:   item.ProductID,
		BuyerID:     o.BuyerID,
		ProductType: item.ProductType,
		Elapsed:     elapsed,
		RejectedAt:  now,
	}, now)
}

// RespondToRefund records the seller's accept or reject on a pending request.
func (h *Handler) RespondToRefund(ctx context.Context, cmd RespondToRefund) (*refund.Request, error) {
	if cmd.Action != refund.ActionSellerAccept && cmd.Action != refund.ActionSellerReject {
		return nil, refund.ErrInvalidAction
	}
	return h.transition(ctx, cmd.RequestID, cmd.Actor, cmd.Action, cmd.Reason, func(_ store.Tx, r *refund.Request) error {
		return authorizeOwner(cmd.Actor, auth.Require(user.RoleSeller).OwnedBy(r.SellerID), refund.ErrRequestNotFound)
	})
}

// DisputeRefund escalates a seller rejection to an admin. The rejected line
// must still be completed with no other dispute on it, so the admin ruling
// always finds the line where the rejection left it.
func (h *Handler) DisputeRefund(ctx context.Context, cmd DisputeRefund) (*refund.Request, error) {
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, refund.ErrDisputeReasonRequired
	}
	return h.transition(ctx, cmd.RequestID, cmd.Actor, refund.ActionDispute, cmd.Reason, func(tx store.Tx, r *refund.Request) error {
		if err := authorizeOwner(cmd.Actor, auth.Require(user.RoleBuyer).OwnedBy(r.BuyerID), refund.ErrNotDisputable); err != nil {
			return err
		}
		if r.Status != refund.StatusSellerRejected {
			return nil
		}
		status, err := tx.LockItem(ctx, r.OrderID, r.ProductID)
		if err != nil {
			return err
		}
		if status != order.ItemCompleted {
			return refund.ErrItemMoved
		}
		return ensureNoDispute(ctx, tx, r.OrderID, r.ProductID, r.ID)
	})
}

// ensureNoDispute fails when a request on the line other than except is
// disputed. Callers lock the line first so concurrent claims serialize.
func ensureNoDispute(ctx context.Context, tx store.Tx, orderID, productID, except string) error {
	disputed, err := tx.ListRefunds(ctx, store.RefundFilter{
		OrderID:   orderID,
		ProductID: productID,
		Statuses:  []refund.Status{refund.StatusDisputed},
	})
	if err != nil {
		return err
	}
	for _, r := range disputed {
		if r.ID != except {
			return refund.ErrDisputeOpen
		}
	}
	return nil
}

// ResolveDispute settles a disputed request. Approval refunds the line;
// rejection closes it as refund_rejected.
func (h *Handler) ResolveDispute(ctx context.Context, cmd ResolveDispute) (*refund.Request, error) {
	var action refund.Action
	switch cmd.Decision {
	case "approve":
		action = refund.ActionAdminApprove
	case "reject":
		action = refund.ActionAdminReject
	default:
		return nil, refund.ErrInvalidAction
	}
	return h.transition(ctx, cmd.RequestID, cmd.Actor, action, "", func(store.Tx, *refund.Request) error {
		return auth.Authorize(cmd.Actor, auth.Require(user.RoleAdmin))
	})
}

// transition loads a request, runs check on it and moves it through action
// in one transaction.
func (h *Handler) transition(ctx context.Context, requestID string, actor auth.Principal, action refund.Action, reason string, check func(store.Tx, *refund.Request) error) (*refund.Request, error) {
	now := h.now()

	var updated *refund.Request
	err := h.store.WithinTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRefund(ctx, requestID)
		if err != nil {
			return err
		}
		if err := check(tx, r); err != nil {
			return err
		}
		if err := h.advance(ctx, tx, r, action, actor, reason, now); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Refund] Request %s moved to %s by %s %s", updated.ID, updated.Status, actor.Role, actor.ID)
	return updated, nil
}

// advance applies action to r, stores it only if nobody changed it first,
// and carries the consequences over to the order line, the product counters
// and the ledger.
func (h *Handler) advance(ctx context.Context, tx store.Tx, r *refund.Request, action refund.Action, actor auth.Principal, reason string, now time.Time) error {
	from := r.Status
	if err := r.Apply(action, actor.Role, reason, now); err != nil {
		return err
	}
	if err := tx.UpdateRefund(ctx, r, from); err != nil {
		return err
	}

	var note string
	if r.SellerResponse != nil && action == refund.ActionSellerReject {
		note = r.SellerResponse.Reason
	}
	if r.Dispute != nil && action == refund.ActionDispute {
		note = r.Dispute.Reason
	}
	if err := emit(ctx, tx, r.ID, refund.AggregateType, refund.EventRefundStatusChanged, refund.RefundStatusChanged{
		RequestID: r.ID,
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		BuyerID:   r.BuyerID,
		SellerID:  r.SellerID,
		Amount:    r.RefundAmount,
		From:      from,
		To:        r.Status,
		Reason:    note,
		ChangedAt: now,
	}, now); err != nil {
		return err
	}

	itemAction, ok := refund.ItemAction(r.Status)
	if !ok {
		return nil
	}
	o, err := tx.GetOrder(ctx, r.OrderID)
	if err != nil {
		return err
	}
	if err := moveItem(ctx, tx, o, r.ProductID, itemAction, actor.Role, now); err != nil {
		return err
	}
	if !r.Status.Granted() {
		return nil
	}

	item, err := o.Item(r.ProductID)
	if err != nil {
		return err
	}
	return reverseSale(ctx, tx, o, *item, now)
}

// reverseSale undoes the counters and revenue of a sold line.
func reverseSale(ctx context.Context, tx store.Tx, o *order.Order, item order.Item, now time.Time) error {
	if _, err := stats.Apply(ctx, tx, item.ProductID, item.Quantity, true, now); err != nil {
		return err
	}
	rev := ledger.NewReversal(newID(), item.SellerID, o.ID, item.ProductID, item.Quantity, item.Price, o.CreatedAt, now)
	return post(ctx, tx, rev)
}
