package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Company owns products and employs customers' buyers. Companies are
// passivated, not deleted, while orders still reference their products.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:co"`

	ID        int64     `bun:",pk,autoincrement"`
	Name      string    `bun:"name"`
	Active    bool      `bun:"active"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	DeletedAt time.Time `bun:"deleted_at,nullzero"`
}

// Product is a sellable catalog item. PurchasePrice is the current cost and
// is snapshotted onto order lines at line-creation time.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID            int64           `bun:",pk,autoincrement"`
	CompanyID     int64           `bun:"company_id"`
	Name          string          `bun:"name"`
	PurchasePrice decimal.Decimal `bun:"purchase_price"`
	Active        bool            `bun:"active"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	DeletedAt     time.Time       `bun:"deleted_at,nullzero"`

	Company *Company `bun:"rel:belongs-to,join:company_id=id"`
}

// Sellable reports whether the product may appear on new order lines.
func (p *Product) Sellable() bool {
	return p != nil && p.Active && p.DeletedAt.IsZero()
}

// Warehouse is a physical stock location.
type Warehouse struct {
	bun.BaseModel `bun:"table:warehouses,alias:w"`

	ID        int64     `bun:",pk,autoincrement"`
	Name      string    `bun:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Customer is the buyer an order is placed for.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	ID        int64     `bun:",pk,autoincrement"`
	CompanyID int64     `bun:"company_id"`
	Name      string    `bun:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`

	Company *Company `bun:"rel:belongs-to,join:company_id=id"`
}

// Admin is an administrator identity used for order attribution.
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`

	ID         int64  `bun:",pk,autoincrement"`
	ExternalID string `bun:"external_id"`
	Name       string `bun:"name"`
}

// Employee is an employee identity used for order attribution.
type Employee struct {
	bun.BaseModel `bun:"table:employees,alias:emp"`

	ID         int64  `bun:",pk,autoincrement"`
	ExternalID string `bun:"external_id"`
	Name       string `bun:"name"`
}
