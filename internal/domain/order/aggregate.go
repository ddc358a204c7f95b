package order

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/example/game-marketplace/internal/domain/product"
	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

// Status is the order-level rollup, set by checkout and fulfilment.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ItemStatus is tracked per line item, independently of its siblings.
type ItemStatus string

const (
	ItemPending         ItemStatus = "pending"
	ItemCompleted       ItemStatus = "completed"
	ItemRefundRequested ItemStatus = "refund_requested"
	ItemRefunded        ItemStatus = "refunded"
	ItemRefundRejected  ItemStatus = "refund_rejected"
)

type ItemType string

const (
	ItemDigital  ItemType = "DIGITAL"
	ItemPhysical ItemType = "PHYSICAL"
)

func ItemTypeOf(t product.Type) ItemType {
	if t.IsDigital() {
		return ItemDigital
	}
	return ItemPhysical
}

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

var (
	ErrOrderNotFound       = apperr.New(apperr.ErrNotFound, "Order not found")
	ErrItemNotFound        = apperr.New(apperr.ErrNotFound, "Product not found in order")
	ErrEmptyOrder          = apperr.New(apperr.ErrValidation, "No items provided")
	ErrInvalidQuantity     = apperr.New(apperr.ErrValidation, "quantity must be positive")
	ErrInvalidPayment      = apperr.New(apperr.ErrValidation, "Invalid payment method")
	ErrDigitalRequiresCard = apperr.New(apperr.ErrValidation, "Digital items can only be paid by card")
	ErrAddressRequired     = apperr.New(apperr.ErrValidation, "Delivery address is required for physical items")
	ErrInvalidStatus       = apperr.New(apperr.ErrInvalidState, "invalid order status transition")
	ErrOrderCancelled      = apperr.New(apperr.ErrInvalidState, "order is already cancelled")
	ErrOrderCompleted      = apperr.New(apperr.ErrInvalidState, "order is already completed")
	ErrInvalidItemAction   = apperr.New(apperr.ErrInvalidState, "invalid item status transition")
	ErrActorNotAllowed     = apperr.New(apperr.ErrUnauthorized, "actor may not perform this transition")
)

type ShippingInfo struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Item struct {
	ProductID    string          `json:"product_id"`
	SellerID     string          `json:"seller_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	IsDiscounted bool            `json:"is_discounted"`
	Type         ItemType        `json:"type"`
	ProductType  product.Type    `json:"product_type"`
	Status       ItemStatus      `json:"status"`
}

// Total is the snapshotted line amount.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID            string          `json:"id"`
	BuyerID       string          `json:"buyer_id"`
	Items         []Item          `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ShippingInfo  *ShippingInfo   `json:"shipping_info,omitempty"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// New assembles an order from priced line items. Digital items are
// delivered on purchase and start completed; physical items wait for
// fulfilment. An order without physical items is completed immediately.
func New(id, buyerID string, items []Item, method PaymentMethod, shipping *ShippingInfo, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	o := &Order{
		ID:            id,
		BuyerID:       buyerID,
		Items:         make([]Item, 0, len(items)),
		TotalAmount:   decimal.Zero,
		PaymentMethod: method,
		Status:        StatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		item.Type = ItemTypeOf(item.ProductType)
		item.Status = ItemCompleted
		if item.Type == ItemPhysical {
			item.Status = ItemPending
			o.Status = StatusPending
		}
		o.Items = append(o.Items, item)
		o.TotalAmount = o.TotalAmount.Add(item.Total())
	}

	if err := ValidatePayment(method, o.HasPhysical(), shipping); err != nil {
		return nil, err
	}
	if o.HasPhysical() {
		o.ShippingInfo = shipping
	}
	return o, nil
}

// ValidatePayment checks that the payment method suits the cart contents.
func ValidatePayment(method PaymentMethod, hasPhysical bool, shipping *ShippingInfo) error {
	switch method {
	case PaymentCard, PaymentCashOnDelivery:
	default:
		return ErrInvalidPayment
	}
	if !hasPhysical {
		if method != PaymentCard {
			return ErrDigitalRequiresCard
		}
		return nil
	}
	if shipping == nil || strings.TrimSpace(shipping.Address) == "" {
		return ErrAddressRequired
	}
	return nil
}

func (o *Order) HasPhysical() bool {
	return slices.ContainsFunc(o.Items, func(i Item) bool { return i.Type == ItemPhysical })
}

// Item returns the line for productID.
func (o *Order) Item(productID string) (*Item, error) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

// HasSeller reports whether any line belongs to sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	return slices.ContainsFunc(o.Items, func(i Item) bool { return i.SellerID == sellerID })
}

// ItemsBySeller groups line items by seller, keeping order of first appearance.
func (o *Order) ItemsBySeller() ([]string, map[string][]Item) {
	var sellers []string
	grouped := make(map[string][]Item)
	for _, item := range o.Items {
		if _, ok := grouped[item.SellerID]; !ok {
			sellers = append(sellers, item.SellerID)
		}
		grouped[item.SellerID] = append(grouped[item.SellerID], item)
	}
	return sellers, grouped
}

// Clone returns a copy that shares no slices with o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.ShippingInfo != nil {
		s := *o.ShippingInfo
		c.ShippingInfo = &s
	}
	return &c
}

// validTransitions defines allowed order status transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	return slices.Contains(validTransitions[o.Status], target)
}

// TransitionOrder validates an order status change requested by actor.
func TransitionOrder(current, target Status, actor user.Role) (Status, error) {
	if actor != user.RoleSeller && actor != user.RoleAdmin && actor != user.RoleSystem {
		return current, ErrActorNotAllowed
	}
	o := Order{Status: current}
	if !o.CanTransitionTo(target) {
		return current, o.transitionError(target)
	}
	return target, nil
}

func (o *Order) transitionError(target Status) error {
	switch o.Status {
	case StatusCancelled:
		return ErrOrderCancelled
	case StatusCompleted:
		return ErrOrderCompleted
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// ItemAction is something that happens to a line item.
type ItemAction string

const (
	ItemFulfil        ItemAction = "fulfil"
	ItemRequestRefund ItemAction = "request_refund"
	ItemGrantRefund   ItemAction = "grant_refund"
	ItemDenyRefund    ItemAction = "deny_refund"
	ItemRestore       ItemAction = "restore"
	ItemCancel        ItemAction = "cancel"
)

type itemRule struct {
	to     ItemStatus
	actors []user.Role
}

// itemTransitions is the complete item lifecycle. refunded and
// refund_rejected are terminal; cancelling an order refunds every line that
// has not reached one of them.
var itemTransitions = map[ItemStatus]map[ItemAction]itemRule{
	ItemPending: {
		ItemFulfil: {ItemCompleted, []user.Role{user.RoleSystem, user.RoleSeller, user.RoleAdmin}},
		ItemCancel: {ItemRefunded, cancelActors},
	},
	ItemCompleted: {
		ItemRequestRefund: {ItemRefundRequested, []user.Role{user.RoleBuyer}},
		ItemGrantRefund:   {ItemRefunded, []user.Role{user.RoleSystem, user.RoleAdmin}},
		ItemDenyRefund:    {ItemRefundRejected, []user.Role{user.RoleSystem, user.RoleAdmin}},
		ItemCancel:        {ItemRefunded, cancelActors},
	},
	ItemRefundRequested: {
		ItemGrantRefund: {ItemRefunded, []user.Role{user.RoleSeller, user.RoleAdmin, user.RoleSystem}},
		ItemDenyRefund:  {ItemRefundRejected, []user.Role{user.RoleAdmin}},
		ItemRestore:     {ItemCompleted, []user.Role{user.RoleSeller}},
		ItemCancel:      {ItemRefunded, cancelActors},
	},
}

var cancelActors = []user.Role{user.RoleSeller, user.RoleAdmin, user.RoleSystem}

// CanTransitionItem reports whether action is legal from current for actor.
func CanTransitionItem(current ItemStatus, action ItemAction, actor user.Role) bool {
	_, err := TransitionItem(current, action, actor)
	return err == nil
}

// TransitionItem is the single place item status changes are decided.
func TransitionItem(current ItemStatus, action ItemAction, actor user.Role) (ItemStatus, error) {
	rule, ok := itemTransitions[current][action]
	if !ok {
		return current, fmt.Errorf("%w: cannot %s item in status %s", ErrInvalidItemAction, action, current)
	}
	if !slices.Contains(rule.actors, actor) {
		return current, fmt.Errorf("%w: %s cannot %s item", ErrActorNotAllowed, actor, action)
	}
	return rule.to, nil
}
