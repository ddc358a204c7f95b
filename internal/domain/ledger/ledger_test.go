package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod(t *testing.T) {
	p := PeriodOf(time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC))

	assert.Equal(t, Period{Year: 2025, Month: time.January}, p)
	assert.Equal(t, Period{Year: 2024, Month: time.December}, p.Previous())
	assert.Equal(t, Period{Year: 2025, Month: time.February}, Period{Year: 2025, Month: time.March}.Previous())
	assert.Equal(t, "2025-01", p.String())
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2025, Month: time.March}, p)

	for _, bad := range []string{"", "2025-13", "03-2025", "2025/03"} {
		_, err := ParsePeriod(bad)
		assert.ErrorIs(t, err, ErrInvalidPeriod, bad)
	}
}

func TestPeriodOf_UsesUTC(t *testing.T) {
	tz := time.FixedZone("UTC+3", 3*60*60)

	p := PeriodOf(time.Date(2025, 4, 1, 1, 0, 0, 0, tz))

	assert.Equal(t, Period{Year: 2025, Month: time.March}, p)
}

func TestNewSale(t *testing.T) {
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tx := NewSale("tx-1", "seller-1", "order-1", "pad-1", 3, decimal.RequireFromString("49.99"), true, at)

	assert.Equal(t, KindSale, tx.Kind)
	assert.True(t, tx.Total.Equal(decimal.RequireFromString("149.97")))
	assert.Equal(t, Delta{Sales: 1, Units: 3, Revenue: tx.Total}, tx.Delta())
	assert.True(t, tx.IsDiscounted)
}

func TestNewReversal_BookedInPurchaseMonth(t *testing.T) {
	purchased := time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC)
	refunded := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	tx := NewReversal("tx-2", "seller-1", "order-1", "pad-1", 2, decimal.RequireFromString("10"), purchased, refunded)

	assert.Equal(t, Period{Year: 2025, Month: time.February}, tx.Period)
	assert.Equal(t, refunded, tx.Date)
	assert.Equal(t, -2, tx.Quantity)
	assert.True(t, tx.Total.Equal(decimal.RequireFromString("-20")))
	d := tx.Delta()
	assert.Equal(t, 0, d.Sales)
	assert.Equal(t, 1, d.Refunds)
	assert.Equal(t, -2, d.Units)
}

func TestRecord_ApplyAndVerify(t *testing.T) {
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		NewSale("1", "s", "o1", "a", 1, decimal.RequireFromString("59.99"), false, at),
		NewSale("2", "s", "o2", "b", 2, decimal.RequireFromString("49.99"), false, at),
		NewReversal("3", "s", "o2", "b", 2, decimal.RequireFromString("49.99"), at, at.Add(time.Hour)),
	}

	r := NewRecord("s", PeriodOf(at))
	for _, tx := range txs {
		r.Apply(tx.Delta(), tx.Date)
	}

	assert.Equal(t, 2, r.TotalSales)
	assert.Equal(t, 1, r.TotalUnits)
	assert.Equal(t, 1, r.Refunds)
	assert.True(t, r.TotalRevenue.Equal(decimal.RequireFromString("59.99")))
	assert.True(t, r.MonthlyRevenue.Equal(r.TotalRevenue))
	require.NoError(t, Verify(r, txs))
}

func TestVerify_DetectsDrift(t *testing.T) {
	at := time.Now()
	txs := []Transaction{NewSale("1", "s", "o", "a", 1, decimal.NewFromInt(10), false, at)}
	r := NewRecord("s", PeriodOf(at))
	r.Apply(txs[0].Delta(), at)
	r.TotalUnits++

	assert.ErrorIs(t, Verify(r, txs), ErrImbalanced)
}
