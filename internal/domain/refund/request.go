package refund

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/order"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/shopspring/decimal"
)

const AggregateType = "RefundRequest"

type Status string

const (
	StatusPending        Status = "pending"
	StatusAutoAccepted   Status = "auto_accepted"
	StatusAutoRejected   Status = "auto_rejected" // window rejections are not persisted, so nothing reaches this
	StatusSellerAccepted Status = "seller_accepted"
	StatusSellerRejected Status = "seller_rejected"
	StatusDisputed       Status = "disputed"
	StatusAdminAccepted  Status = "admin_accepted"
	StatusAdminRejected  Status = "admin_rejected"
)

// Granted reports whether money goes back to the buyer in this status.
func (s Status) Granted() bool {
	return s == StatusAutoAccepted || s == StatusSellerAccepted || s == StatusAdminAccepted
}

type DisputeStatus string

const (
	DisputePending  DisputeStatus = "pending"
	DisputeResolved DisputeStatus = "resolved"
)

type Action string

const (
	ActionAutoAccept   Action = "auto_accept"
	ActionSellerAccept Action = "accept"
	ActionSellerReject Action = "reject"
	ActionDispute      Action = "dispute"
	ActionAdminApprove Action = "approve"
	ActionAdminReject  Action = "admin_reject"
)

var (
	ErrRequestNotFound       = apperr.New(apperr.ErrNotFound, "Refund request not found")
	ErrNotDisputable         = apperr.New(apperr.ErrNotFound, "Refund request not found or not eligible for dispute")
	ErrReasonRequired        = apperr.New(apperr.ErrValidation, "Refund reason is required")
	ErrRejectReasonRequired  = apperr.New(apperr.ErrValidation, "Reason required for rejection")
	ErrDisputeReasonRequired = apperr.New(apperr.ErrValidation, "Dispute reason is required")
	ErrInvalidAction         = apperr.New(apperr.ErrValidation, "Invalid action")
	ErrNotEligible           = apperr.New(apperr.ErrInvalidState, "This item is not eligible for refund")
	ErrDisputeOpen           = apperr.New(apperr.ErrInvalidState, "A dispute for this item is still open")
	ErrItemMoved             = apperr.New(apperr.ErrInvalidState, "The item has a newer refund request or is already closed")
	ErrInvalidTransition     = apperr.New(apperr.ErrInvalidState, "invalid refund status transition")
	ErrActorNotAllowed       = apperr.New(apperr.ErrUnauthorized, "actor may not perform this refund action")
)

type rule struct {
	to    Status
	actor user.Role
}

// transitions is the whole refund workflow. Every status not listed as a
// key is terminal.
var transitions = map[Status]map[Action]rule{
	StatusPending: {
		ActionAutoAccept:   {StatusAutoAccepted, user.RoleSystem},
		ActionSellerAccept: {StatusSellerAccepted, user.RoleSeller},
		ActionSellerReject: {StatusSellerRejected, user.RoleSeller},
	},
	StatusSellerRejected: {
		ActionDispute: {StatusDisputed, user.RoleBuyer},
	},
	StatusDisputed: {
		ActionAdminApprove: {StatusAdminAccepted, user.RoleAdmin},
		ActionAdminReject:  {StatusAdminRejected, user.RoleAdmin},
	},
}

// Transition decides the next status for action taken by actor.
func Transition(current Status, action Action, actor user.Role) (Status, error) {
	rule, ok := transitions[current][action]
	if !ok {
		if !knownAction(action) {
			return current, ErrInvalidAction
		}
		return current, fmt.Errorf("%w: cannot %s a request in status %s", ErrInvalidTransition, action, current)
	}
	if rule.actor != actor {
		return current, fmt.Errorf("%w: %s cannot %s", ErrActorNotAllowed, actor, action)
	}
	return rule.to, nil
}

func knownAction(a Action) bool {
	return slices.Contains([]Action{
		ActionAutoAccept, ActionSellerAccept, ActionSellerReject,
		ActionDispute, ActionAdminApprove, ActionAdminReject,
	}, a)
}

// ItemAction is the order item change that accompanies entering status s.
func ItemAction(s Status) (order.ItemAction, bool) {
	switch s {
	case StatusPending:
		return order.ItemRequestRefund, true
	case StatusAutoAccepted, StatusSellerAccepted, StatusAdminAccepted:
		return order.ItemGrantRefund, true
	case StatusSellerRejected:
		return order.ItemRestore, true
	case StatusAdminRejected:
		return order.ItemDenyRefund, true
	}
	return "", false
}

type Response struct {
	Reason string    `json:"reason"`
	Date   time.Time `json:"date"`
}

type Dispute struct {
	Reason     string        `json:"reason"`
	Date       time.Time     `json:"date"`
	Status     DisputeStatus `json:"status"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

type Request struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	ProductID      string          `json:"product_id"`
	BuyerID        string          `json:"buyer_id"`
	SellerID       string          `json:"seller_id"`
	Reason         string          `json:"reason"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	ProductType    product.Type    `json:"product_type"`
	PurchaseDate   time.Time       `json:"purchase_date"`
	Status         Status          `json:"status"`
	SellerResponse *Response       `json:"seller_response,omitempty"`
	Dispute        *Dispute        `json:"dispute,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// New opens a pending request for one line of o. The amount, product type
// and purchase date are copied so later changes to the order or product
// do not move them.
func New(id string, o *order.Order, item order.Item, reason string, now time.Time) (*Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if item.Status != order.ItemCompleted {
		return nil, ErrNotEligible
	}
	return &Request{
		ID:           id,
		OrderID:      o.ID,
		ProductID:    item.ProductID,
		BuyerID:      o.BuyerID,
		SellerID:     item.SellerID,
		Reason:       reason,
		RefundAmount: item.Total(),
		ProductType:  item.ProductType,
		PurchaseDate: o.CreatedAt,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Apply moves the request through action. reason is required for a seller
// rejection and for a dispute. On error r is left untouched.
func (r *Request) Apply(action Action, actor user.Role, reason string, now time.Time) error {
	next, err := Transition(r.Status, action, actor)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)

	switch action {
	case ActionSellerAccept:
		r.SellerResponse = &Response{Reason: reason, Date: now}
	case ActionSellerReject:
		if reason == "" {
			return ErrRejectReasonRequired
		}
		r.SellerResponse = &Response{Reason: reason, Date: now}
	case ActionDispute:
		if reason == "" {
			return ErrDisputeReasonRequired
		}
		r.Dispute = &Dispute{Reason: reason, Date: now, Status: DisputePending}
	case ActionAdminApprove, ActionAdminReject:
		if r.Dispute != nil {
			resolved := now
			r.Dispute.Status = DisputeResolved
			r.Dispute.ResolvedAt = &resolved
		}
	}

	r.Status = next
	r.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	c := *r
	if r.SellerResponse != nil {
		s := *r.SellerResponse
		c.SellerResponse = &s
	}
	if r.Dispute != nil {
		d := *r.Dispute
		c.Dispute = &d
	}
	return &c
}
