package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/meridian/internal/entity"
)

// OrderLineRequest is one submitted line of an order payload.
type OrderLineRequest struct {
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

// CreateOrderRequest is the payload for creating an order.
type CreateOrderRequest struct {
	CustomerID int64              `json:"customer_id"`
	ActorID    string             `json:"actor_id"`
	Currency   string             `json:"currency"`
	Lines      []OrderLineRequest `json:"lines"`
}

// UpdateOrderRequest carries the full desired line set for an order.
type UpdateOrderRequest struct {
	Lines []OrderLineRequest `json:"lines"`
}

// OrderLineResponse represents one order line as exposed via transport layers.
type OrderLineResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID         int64               `json:"id"`
	CustomerID int64               `json:"customer_id"`
	ActorKind  string              `json:"actor_kind"`
	ActorID    int64               `json:"actor_id"`
	Currency   string              `json:"currency"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	Active     bool                `json:"active"`
	Lines      []OrderLineResponse `json:"lines"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// OrderFromEntity maps an order entity into its transport shape.
func OrderFromEntity(order *entity.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		if !line.DeletedAt.IsZero() {
			continue
		}
		lines = append(lines, OrderLineResponse{
			ID:          line.ID,
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			Total:       line.Total,
		})
	}
	return OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		ActorKind:  string(order.Actor.Kind),
		ActorID:    order.Actor.ID,
		Currency:   string(order.Currency),
		TotalPrice: order.TotalPrice,
		Active:     order.Active,
		Lines:      lines,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}
