package dto

import (
	"time"

	"github.com/Additional-Code/meridian/internal/entity"
)

// ReceiveStockRequest is the payload for booking received goods.
type ReceiveStockRequest struct {
	ProductID   int64 `json:"product_id"`
	WarehouseID int64 `json:"warehouse_id"`
	Quantity    int64 `json:"quantity"`
}

// StockEntryResponse represents one product/warehouse stock level.
type StockEntryResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockEntryFromEntity maps a stock entry into its transport shape.
func StockEntryFromEntity(entry *entity.StockEntry) StockEntryResponse {
	return StockEntryResponse{
		ID:          entry.ID,
		ProductID:   entry.ProductID,
		WarehouseID: entry.WarehouseID,
		Quantity:    entry.Quantity,
		UpdatedAt:   entry.UpdatedAt,
	}
}
