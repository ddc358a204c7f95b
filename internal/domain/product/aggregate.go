package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/shopspring/decimal"
)

const AggregateType = "Product"

type Type string

const (
	TypeDigitalGame  Type = "digital_game"
	TypePhysicalGame Type = "physical_game"
	TypeConsole      Type = "console"
	TypePC           Type = "pc"
	TypePeripheral   Type = "peripheral"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDigitalGame, TypePhysicalGame, TypeConsole, TypePC, TypePeripheral:
		return true
	}
	return false
}

// IsDigital reports whether the type has no physical stock.
func (t Type) IsDigital() bool { return t == TypeDigitalGame }

// Category is derived from the type when a listing omits it.
func (t Type) Category() Category {
	switch t {
	case TypeDigitalGame, TypePhysicalGame:
		return CategoryGame
	}
	return CategoryHardware
}

type Category string

const (
	CategoryGame     Category = "game"
	CategoryHardware Category = "hardware"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

var (
	ErrProductNotFound    = apperr.New(apperr.ErrNotFound, "Product not found")
	ErrProductUnavailable = apperr.New(apperr.ErrNotFound, "product not found or unavailable")
	ErrInvalidName        = apperr.New(apperr.ErrValidation, "name is required")
	ErrInvalidPrice       = apperr.New(apperr.ErrValidation, "price must be positive")
	ErrPricePrecision     = apperr.New(apperr.ErrValidation, "prices may have at most 2 decimal places")
	ErrInvalidSalePrice   = apperr.New(apperr.ErrValidation, "sale price must be positive and below the list price")
	ErrInvalidStock       = apperr.New(apperr.ErrValidation, "stock cannot be negative")
	ErrInvalidType        = apperr.New(apperr.ErrValidation, "invalid product type")
	ErrInvalidStatus      = apperr.New(apperr.ErrValidation, "invalid product status")
	ErrInsufficientStock  = apperr.New(apperr.ErrValidation, "insufficient stock")
	ErrDigitalStock       = apperr.New(apperr.ErrValidation, "digital products have no stock")
)

// StockError reports a physical item ordered beyond what is on hand.
type StockError struct {
	ProductName string
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }
func (e *StockError) Unwrap() error        { return apperr.ErrValidation }

// Sales holds the cumulative counters maintained by the stat updater.
// LastMonth counts units in the calendar month of LastMonthUpdated.
type Sales struct {
	Total            int       `json:"total"`
	LastMonth        int       `json:"last_month"`
	LastMonthUpdated time.Time `json:"last_month_updated"`
}

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"seller_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	OnSale      bool            `json:"on_sale"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	SaleEndDate *time.Time      `json:"sale_end_date,omitempty"`
	Stock       int             `json:"stock"`
	Type        Type            `json:"type"`
	Category    Category        `json:"category"`
	Status      Status          `json:"status"`
	Sales       Sales           `json:"sales"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) IsActive() bool   { return p.Status == StatusActive }
func (p *Product) IsPhysical() bool { return !p.Type.IsDigital() }

// IsOnSale reports whether the sale price applies at the given instant.
func (p *Product) IsOnSale(now time.Time) bool {
	if !p.OnSale {
		return false
	}
	return p.SaleEndDate == nil || now.Before(*p.SaleEndDate)
}

// UnitPrice is the price a buyer pays at now. The second result reports
// whether the sale price was used.
func (p *Product) UnitPrice(now time.Time) (decimal.Decimal, bool) {
	if p.IsOnSale(now) {
		return p.SalePrice, true
	}
	return p.Price, false
}

// Validate checks the listing fields a seller controls.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidName
	}
	if !p.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if p.OnSale && (!p.SalePrice.IsPositive() || p.SalePrice.GreaterThanOrEqual(p.Price)) {
		return ErrInvalidSalePrice
	}
	if !inCents(p.Price) || !inCents(p.SalePrice) {
		return ErrPricePrecision
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	if !p.Type.Valid() {
		return ErrInvalidType
	}
	switch p.Status {
	case StatusActive, StatusInactive, StatusDeleted:
	default:
		return ErrInvalidStatus
	}
	return nil
}

// inCents reports whether d fits the NUMERIC(12,2) price columns.
func inCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Adjustment is a signed change to a product's counters.
type Adjustment struct {
	Sales int `json:"sales"`
	Stock int `json:"stock"`
}

// NewAdjustment returns the counter change for selling (or refunding)
// quantity units of a product of type t. Digital products carry no stock.
func NewAdjustment(t Type, quantity int, isRefund bool) Adjustment {
	adj := Adjustment{Sales: quantity, Stock: -quantity}
	if isRefund {
		adj = Adjustment{Sales: -quantity, Stock: quantity}
	}
	if t.IsDigital() {
		adj.Stock = 0
	}
	return adj
}

// Apply adds adj to the product's counters as of at. The monthly counter
// restarts when at falls in a different calendar month than the last update.
func (p *Product) Apply(adj Adjustment, at time.Time) error {
	if p.Stock+adj.Stock < 0 {
		return &StockError{ProductName: p.Name, Available: p.Stock}
	}
	p.Stock += adj.Stock
	p.Sales.Total += adj.Sales
	if SameMonth(p.Sales.LastMonthUpdated, at) {
		p.Sales.LastMonth += adj.Sales
	} else {
		p.Sales.LastMonth = max(adj.Sales, 0)
	}
	p.Sales.LastMonthUpdated = at
	return nil
}

func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
