package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/entity"
)

// Event kinds published on the shared sales topic.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
)

// OrderEvent is emitted after an order lifecycle mutation commits.
type OrderEvent struct {
	Kind       string          `json:"kind"`
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Currency   entity.Currency `json:"currency"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Active     bool            `json:"active"`
	Lines      int             `json:"lines"`
	At         time.Time       `json:"at"`
}

func (s *Service) publishEvent(ctx context.Context, kind string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil || order == nil {
		return
	}
	event := OrderEvent{
		Kind:       kind,
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Currency:   order.Currency,
		TotalPrice: order.TotalPrice,
		Active:     order.Active,
		Lines:      len(order.Lines),
		At:         time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order event", zap.String("kind", kind), zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish order event", zap.String("kind", kind), zap.Error(err))
		}
	}
}
