package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// ExchangeRateSnapshot is a point-in-time record of the USD and EUR rates
// against the reporting currency. Snapshots are append-only; the newest one
// is authoritative for costing and metrics.
type ExchangeRateSnapshot struct {
	bun.BaseModel `bun:"table:exchange_rates,alias:er"`

	ID         int64           `bun:",pk,autoincrement"`
	DollarRate decimal.Decimal `bun:"dollar_rate"`
	EuroRate   decimal.Decimal `bun:"euro_rate"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Multiplier returns the factor converting a value in the given currency
// into the reporting currency. The domestic multiplier is always 1.
func (s *ExchangeRateSnapshot) Multiplier(c Currency) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if s == nil {
		return one
	}
	switch c {
	case CurrencyUSD:
		if s.DollarRate.IsPositive() {
			return s.DollarRate
		}
	case CurrencyEUR:
		if s.EuroRate.IsPositive() {
			return s.EuroRate
		}
	}
	return one
}
