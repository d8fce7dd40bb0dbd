package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/meridian/internal/entity"
	stocksvc "github.com/Additional-Code/meridian/internal/service/stock"
)

// LineInput is one desired order line as submitted by a caller.
type LineInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int64
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
}

// Reconciliation is the outcome of diffing persisted lines against a
// submitted line set: the line mutations to apply and the signed stock
// deltas they imply.
type Reconciliation struct {
	// Matched are persisted lines whose quantity/discount were overwritten
	// from the submission and whose totals were recomputed.
	Matched []*entity.OrderLine
	// Inserted are newly materialized lines with purchase prices snapshotted
	// from the supplied cost map.
	Inserted []*entity.OrderLine
	// Removed are persisted lines absent from the submission, scheduled for
	// deletion; their quantity returns to stock.
	Removed []*entity.OrderLine
	// Deltas lists the non-zero stock movements, in submission order
	// followed by removals in persisted order.
	Deltas []stocksvc.Delta
	// WarehouseMoves flags matched submissions that named a different
	// warehouse than the persisted line. A line's warehouse never changes
	// in place; callers reject the submission (relocation is remove plus
	// re-add).
	WarehouseMoves []WarehouseMove
}

// WarehouseMove records a matched line whose submission asked for another
// warehouse.
type WarehouseMove struct {
	ProductID int64
	From      int64
	To        int64
}

// Lines returns the surviving line set (matched then inserted).
func (r Reconciliation) Lines() []*entity.OrderLine {
	lines := make([]*entity.OrderLine, 0, len(r.Matched)+len(r.Inserted))
	lines = append(lines, r.Matched...)
	lines = append(lines, r.Inserted...)
	return lines
}

// matchKey pairs lines across the two sets. Keyed by (product, discount):
// a changed discount therefore reads as remove+insert, not as an update.
// That is observed upstream policy, kept as-is.
type matchKey struct {
	productID int64
	discount  string
}

func keyOf(productID int64, discount decimal.Decimal) matchKey {
	return matchKey{productID: productID, discount: discount.String()}
}

// Reconcile diffs the persisted lines of an order against the submitted set.
// costs supplies the current purchase price per product for lines that need
// materializing. Pure function: no I/O, never fails.
func Reconcile(persisted []*entity.OrderLine, submitted []LineInput, costs map[int64]decimal.Decimal, now time.Time) Reconciliation {
	remaining := make(map[matchKey][]*entity.OrderLine, len(persisted))
	for _, line := range persisted {
		k := keyOf(line.ProductID, line.Discount)
		remaining[k] = append(remaining[k], line)
	}

	var rec Reconciliation
	for _, in := range submitted {
		k := keyOf(in.ProductID, in.Discount)
		if candidates := remaining[k]; len(candidates) > 0 {
			line := candidates[0]
			remaining[k] = candidates[1:]

			if in.WarehouseID != line.WarehouseID {
				rec.WarehouseMoves = append(rec.WarehouseMoves, WarehouseMove{
					ProductID: line.ProductID,
					From:      line.WarehouseID,
					To:        in.WarehouseID,
				})
			}

			change := line.Quantity - in.Quantity
			line.Quantity = in.Quantity
			line.Discount = in.Discount
			line.RecomputeTotal()
			rec.Matched = append(rec.Matched, line)
			if change != 0 {
				rec.Deltas = append(rec.Deltas, stocksvc.Delta{
					ProductID:   line.ProductID,
					WarehouseID: line.WarehouseID,
					Change:      change,
				})
			}
			continue
		}

		line := &entity.OrderLine{
			ProductID:     in.ProductID,
			WarehouseID:   in.WarehouseID,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			Discount:      in.Discount,
			PurchasePrice: costs[in.ProductID],
			CreatedAt:     now,
		}
		line.RecomputeTotal()
		rec.Inserted = append(rec.Inserted, line)
		rec.Deltas = append(rec.Deltas, stocksvc.Delta{
			ProductID:   in.ProductID,
			WarehouseID: in.WarehouseID,
			Change:      -in.Quantity,
		})
	}

	for _, line := range persisted {
		k := keyOf(line.ProductID, line.Discount)
		candidates := remaining[k]
		if len(candidates) == 0 || candidates[0] != line {
			continue
		}
		remaining[k] = candidates[1:]
		rec.Removed = append(rec.Removed, line)
		rec.Deltas = append(rec.Deltas, stocksvc.Delta{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Change:      line.Quantity,
		})
	}

	return rec
}
