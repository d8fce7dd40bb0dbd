package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// StockEntry records the on-hand quantity of one product in one warehouse.
// Exactly one entry exists per (product, warehouse) pair and the quantity
// never goes below zero.
type StockEntry struct {
	bun.BaseModel `bun:"table:stock_entries,alias:se"`

	ID          int64     `bun:",pk,autoincrement"`
	ProductID   int64     `bun:"product_id"`
	WarehouseID int64     `bun:"warehouse_id"`
	Quantity    int64     `bun:"quantity"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero"`

	Product   *Product   `bun:"rel:belongs-to,join:product_id=id"`
	Warehouse *Warehouse `bun:"rel:belongs-to,join:warehouse_id=id"`
}
