package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLineTotal(t *testing.T) {
	cases := []struct {
		name     string
		quantity int64
		unit     string
		discount string
		want     string
	}{
		{name: "no discount", quantity: 3, unit: "10", discount: "0", want: "30"},
		{name: "half off", quantity: 2, unit: "10", discount: "50", want: "10"},
		{name: "full discount", quantity: 5, unit: "7", discount: "100", want: "0"},
		{name: "fractional discount", quantity: 4, unit: "25", discount: "12.5", want: "87.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LineTotal(tc.quantity, decimal.RequireFromString(tc.unit), decimal.RequireFromString(tc.discount))
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestOrderRecomputeTotalSkipsDeletedLines(t *testing.T) {
	order := &Order{
		Lines: []*OrderLine{
			{Quantity: 2, UnitPrice: decimal.NewFromInt(10), Total: decimal.NewFromInt(20)},
			{Quantity: 1, UnitPrice: decimal.NewFromInt(5), Total: decimal.NewFromInt(5), DeletedAt: time.Now()},
		},
	}
	order.RecomputeTotal()
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(20)))
}

func TestCurrencyValid(t *testing.T) {
	assert.True(t, CurrencyTRY.Valid())
	assert.True(t, CurrencyUSD.Valid())
	assert.True(t, CurrencyEUR.Valid())
	assert.False(t, Currency("GBP").Valid())
	assert.False(t, Currency("").Valid())
}

func TestSnapshotMultiplier(t *testing.T) {
	snap := &ExchangeRateSnapshot{
		DollarRate: decimal.RequireFromString("41.2"),
		EuroRate:   decimal.RequireFromString("48.05"),
	}

	assert.True(t, snap.Multiplier(CurrencyTRY).Equal(decimal.NewFromInt(1)))
	assert.True(t, snap.Multiplier(CurrencyUSD).Equal(decimal.RequireFromString("41.2")))
	assert.True(t, snap.Multiplier(CurrencyEUR).Equal(decimal.RequireFromString("48.05")))

	var missing *ExchangeRateSnapshot
	assert.True(t, missing.Multiplier(CurrencyUSD).Equal(decimal.NewFromInt(1)))

	zero := &ExchangeRateSnapshot{}
	assert.True(t, zero.Multiplier(CurrencyEUR).Equal(decimal.NewFromInt(1)))
}
