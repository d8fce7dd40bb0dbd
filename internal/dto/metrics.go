package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/meridian/internal/entity"
)

// ExchangeRateResponse represents one recorded rate snapshot.
type ExchangeRateResponse struct {
	ID         int64           `json:"id"`
	DollarRate decimal.Decimal `json:"dollar_rate"`
	EuroRate   decimal.Decimal `json:"euro_rate"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ExchangeRateFromEntity maps a snapshot into its transport shape.
func ExchangeRateFromEntity(snapshot *entity.ExchangeRateSnapshot) ExchangeRateResponse {
	return ExchangeRateResponse{
		ID:         snapshot.ID,
		DollarRate: snapshot.DollarRate,
		EuroRate:   snapshot.EuroRate,
		CreatedAt:  snapshot.CreatedAt,
	}
}
