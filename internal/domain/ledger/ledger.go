// Package ledger holds the per-seller monthly sales accounting. A Record is
// the running total for one seller-month; Transactions are its append-only
// itemized log. Corrections are new reversal transactions, never edits.
package ledger

import (
	"fmt"
	"time"

	"github.com/example/game-marketplace/internal/domain/apperr"
	"github.com/shopspring/decimal"
)

const AggregateType = "Ledger"

var (
	ErrImbalanced    = apperr.New(apperr.ErrInvalidState, "ledger totals do not match transactions")
	ErrInvalidPeriod = apperr.New(apperr.ErrValidation, "period must be formatted YYYY-MM")
)

// Period is a calendar month in UTC.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// ParsePeriod reads the YYYY-MM form produced by String.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

type Kind string

const (
	KindSale   Kind = "sale"
	KindRefund Kind = "refund"
)

type Transaction struct {
	ID           string          `json:"id"`
	SellerID     string          `json:"seller_id"`
	Period       Period          `json:"period"`
	OrderID      string          `json:"order_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Total        decimal.Decimal `json:"total"`
	Date         time.Time       `json:"date"`
	IsDiscounted bool            `json:"is_discounted"`
	Kind         Kind            `json:"kind"`
}

// NewSale records quantity units sold at price, booked in the month of at.
func NewSale(id, sellerID, orderID, productID string, quantity int, price decimal.Decimal, discounted bool, at time.Time) Transaction {
	return Transaction{
		ID:           id,
		SellerID:     sellerID,
		Period:       PeriodOf(at),
		OrderID:      orderID,
		ProductID:    productID,
		Quantity:     quantity,
		Price:        price,
		Total:        price.Mul(decimal.NewFromInt(int64(quantity))),
		Date:         at,
		IsDiscounted: discounted,
		Kind:         KindSale,
	}
}

// NewReversal offsets a refunded sale. It is booked in the period of the
// original purchase so that month's net revenue stays accurate.
func NewReversal(id, sellerID, orderID, productID string, quantity int, price decimal.Decimal, purchased, at time.Time) Transaction {
	return Transaction{
		ID:        id,
		SellerID:  sellerID,
		Period:    PeriodOf(purchased),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  -quantity,
		Price:     price,
		Total:     price.Mul(decimal.NewFromInt(int64(-quantity))),
		Date:      at,
		Kind:      KindRefund,
	}
}

// Delta is what a transaction adds to its Record.
type Delta struct {
	Sales   int
	Units   int
	Revenue decimal.Decimal
	Refunds int
}

func (t Transaction) Delta() Delta {
	d := Delta{Units: t.Quantity, Revenue: t.Total}
	if t.Kind == KindRefund {
		d.Refunds = 1
	} else {
		d.Sales = 1
	}
	return d
}

type Record struct {
	SellerID       string          `json:"seller_id"`
	Period         Period          `json:"period"`
	TotalSales     int             `json:"total_sales"`
	TotalUnits     int             `json:"total_units"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
	Refunds        int             `json:"refunds"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewRecord is the zero record for a seller-month.
func NewRecord(sellerID string, p Period) *Record {
	return &Record{SellerID: sellerID, Period: p, TotalRevenue: decimal.Zero, MonthlyRevenue: decimal.Zero}
}

func (r *Record) Apply(d Delta, at time.Time) {
	r.TotalSales += d.Sales
	r.TotalUnits += d.Units
	r.TotalRevenue = r.TotalRevenue.Add(d.Revenue)
	r.MonthlyRevenue = r.MonthlyRevenue.Add(d.Revenue)
	r.Refunds += d.Refunds
	r.UpdatedAt = at
}

// Verify checks r against the full transaction log of its seller-month.
func Verify(r *Record, txs []Transaction) error {
	sum := NewRecord(r.SellerID, r.Period)
	for _, tx := range txs {
		sum.Apply(tx.Delta(), tx.Date)
	}
	if sum.TotalSales != r.TotalSales || sum.TotalUnits != r.TotalUnits || sum.Refunds != r.Refunds ||
		!sum.TotalRevenue.Equal(r.TotalRevenue) || !sum.MonthlyRevenue.Equal(r.MonthlyRevenue) {
		return fmt.Errorf("%w: seller %s %s: record units=%d revenue=%s, log units=%d revenue=%s",
			ErrImbalanced, r.SellerID, r.Period, r.TotalUnits, r.TotalRevenue, sum.TotalUnits, sum.TotalRevenue)
	}
	return nil
}
