package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Currency enumerates the currencies an order may be denominated in.
// TRY is the domestic/reporting currency; metric sums are normalized into it.
type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Valid reports whether the currency code is one of the supported set.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyTRY, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

// ActorKind distinguishes who placed an order. An order is attributed to
// exactly one kind, never both.
type ActorKind string

const (
	ActorAdmin    ActorKind = "admin"
	ActorEmployee ActorKind = "employee"
)

// Actor identifies the party an order is attributed to.
type Actor struct {
	Kind ActorKind `bun:"actor_kind"`
	ID   int64     `bun:"actor_id"`
}

// Order is a committed purchase order together with its line items.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64           `bun:",pk,autoincrement"`
	CustomerID int64           `bun:"customer_id"`
	Actor      Actor           `bun:"embed"`
	Currency   Currency        `bun:"currency"`
	TotalPrice decimal.Decimal `bun:"total_price"`
	Active     bool            `bun:"active"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `bun:"updated_at,nullzero"`
	DeletedAt  time.Time       `bun:"deleted_at,nullzero"`

	Customer *Customer    `bun:"rel:belongs-to,join:customer_id=id"`
	Lines    []*OrderLine `bun:"rel:has-many,join:id=order_id"`
}

// RecomputeTotal sets TotalPrice to the sum of the line totals, skipping
// lines already soft-deleted.
func (o *Order) RecomputeTotal() {
	total := decimal.Zero
	for _, line := range o.Lines {
		if !line.DeletedAt.IsZero() {
			continue
		}
		total = total.Add(line.Total)
	}
	o.TotalPrice = total
}

// OrderLine is one product/quantity/price/discount entry within an order.
// Unit price and purchase price are snapshots taken when the line is first
// created and never change afterwards; quantity and discount change only
// through reconciliation.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines,alias:ol"`

	ID            int64           `bun:",pk,autoincrement"`
	OrderID       int64           `bun:"order_id"`
	ProductID     int64           `bun:"product_id"`
	WarehouseID   int64           `bun:"warehouse_id"`
	Quantity      int64           `bun:"quantity"`
	UnitPrice     decimal.Decimal `bun:"unit_price"`
	Discount      decimal.Decimal `bun:"discount"`
	PurchasePrice decimal.Decimal `bun:"purchase_price"`
	Total         decimal.Decimal `bun:"total"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	DeletedAt     time.Time       `bun:"deleted_at,nullzero"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id"`
}

// RecomputeTotal sets Total to quantity x unit price x (1 - discount/100).
func (l *OrderLine) RecomputeTotal() {
	l.Total = LineTotal(l.Quantity, l.UnitPrice, l.Discount)
}

// Cost returns the cost of goods for the line: purchase price x quantity.
func (l *OrderLine) Cost() decimal.Decimal {
	return l.PurchasePrice.Mul(decimal.NewFromInt(l.Quantity))
}

var hundred = decimal.NewFromInt(100)

// LineTotal computes quantity x unit price x (1 - discount/100).
func LineTotal(quantity int64, unitPrice, discount decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(quantity))
	if discount.IsZero() {
		return gross
	}
	return gross.Mul(decimal.NewFromInt(1).Sub(discount.Div(hundred)))
}
