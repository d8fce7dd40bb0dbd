package order

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/meridian/internal/entity"
	stocksvc "github.com/Additional-Code/meridian/internal/service/stock"
)

func line(id, productID, warehouseID, qty int64, unit, discount string) *entity.OrderLine {
	l := &entity.OrderLine{
		ID:          id,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(unit),
		Discount:    decimal.RequireFromString(discount),
	}
	l.RecomputeTotal()
	return l
}

func TestReconcileAllNewLines(t *testing.T) {
	costs := map[int64]decimal.Decimal{7: decimal.RequireFromString("4.5")}
	now := time.Now().UTC()

	rec := Reconcile(nil, []LineInput{
		{ProductID: 7, WarehouseID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
	}, costs, now)

	require.Len(t, rec.Inserted, 1)
	assert.Empty(t, rec.Matched)
	assert.Empty(t, rec.Removed)

	inserted := rec.Inserted[0]
	assert.True(t, inserted.PurchasePrice.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, inserted.Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, now, inserted.CreatedAt)

	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, stocksvc.Delta{ProductID: 7, WarehouseID: 1, Change: -3}, rec.Deltas[0])
}

func TestReconcileMatchedQuantityChange(t *testing.T) {
	persisted := []*entity.OrderLine{line(1, 7, 2, 5, "10", "0")}

	rec := Reconcile(persisted, []LineInput{
		{ProductID: 7, WarehouseID: 2, Quantity: 2, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
	}, nil, time.Now())

	require.Len(t, rec.Matched, 1)
	assert.Empty(t, rec.Inserted)
	assert.Empty(t, rec.Removed)

	matched := rec.Matched[0]
	assert.EqualValues(t, 2, matched.Quantity)
	assert.True(t, matched.Total.Equal(decimal.NewFromInt(20)))

	// quantity dropped 5 -> 2, so 3 units return to stock
	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, stocksvc.Delta{ProductID: 7, WarehouseID: 2, Change: 3}, rec.Deltas[0])
}

func TestReconcileUnchangedLineEmitsNoDelta(t *testing.T) {
	persisted := []*entity.OrderLine{line(1, 7, 2, 5, "10", "0")}

	rec := Reconcile(persisted, []LineInput{
		{ProductID: 7, WarehouseID: 2, Quantity: 5, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
	}, nil, time.Now())

	require.Len(t, rec.Matched, 1)
	assert.Empty(t, rec.Deltas)
}

func TestReconcileFlagsWarehouseMoveOnMatchedLine(t *testing.T) {
	persisted := []*entity.OrderLine{line(1, 7, 2, 5, "10", "0")}

	rec := Reconcile(persisted, []LineInput{
		{ProductID: 7, WarehouseID: 3, Quantity: 5, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
	}, nil, time.Now())

	require.Len(t, rec.Matched, 1)
	require.Len(t, rec.WarehouseMoves, 1)
	assert.Equal(t, WarehouseMove{ProductID: 7, From: 2, To: 3}, rec.WarehouseMoves[0])
	// the line keeps its warehouse
	assert.EqualValues(t, 2, rec.Matched[0].WarehouseID)
}

func TestReconcileDiscountChangeIsRemoveAndInsert(t *testing.T) {
	persisted := []*entity.OrderLine{line(1, 7, 2, 5, "10", "0")}
	costs := map[int64]decimal.Decimal{7: decimal.NewFromInt(4)}

	rec := Reconcile(persisted, []LineInput{
		{ProductID: 7, WarehouseID: 2, Quantity: 5, UnitPrice: decimal.NewFromInt(10), Discount: decimal.NewFromInt(20)},
	}, costs, time.Now())

	assert.Empty(t, rec.Matched)
	require.Len(t, rec.Inserted, 1)
	require.Len(t, rec.Removed, 1)
	assert.EqualValues(t, 1, rec.Removed[0].ID)

	// charge for the new line, then return the old line's quantity
	require.Len(t, rec.Deltas, 2)
	assert.Equal(t, stocksvc.Delta{ProductID: 7, WarehouseID: 2, Change: -5}, rec.Deltas[0])
	assert.Equal(t, stocksvc.Delta{ProductID: 7, WarehouseID: 2, Change: 5}, rec.Deltas[1])
}

func TestReconcileRemovedLineReturnsQuantity(t *testing.T) {
	persisted := []*entity.OrderLine{
		line(1, 7, 2, 5, "10", "0"),
		line(2, 8, 2, 1, "30", "0"),
	}

	rec := Reconcile(persisted, []LineInput{
		{ProductID: 7, WarehouseID: 2, Quantity: 5, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
	}, nil, time.Now())

	require.Len(t, rec.Removed, 1)
	assert.EqualValues(t, 2, rec.Removed[0].ID)
	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, stocksvc.Delta{ProductID: 8, WarehouseID: 2, Change: 1}, rec.Deltas[0])
}

func TestReconcileDuplicateKeysPairInOrder(t *testing.T) {
	persisted := []*entity.OrderLine{
		line(1, 7, 2, 5, "10", "0"),
		line(2, 7, 2, 3, "10", "0"),
	}

	rec := Reconcile(persisted, []LineInput{
		{ProductID: 7, WarehouseID: 2, Quantity: 4, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
		{ProductID: 7, WarehouseID: 2, Quantity: 3, UnitPrice: decimal.NewFromInt(10), Discount: decimal.Zero},
	}, nil, time.Now())

	require.Len(t, rec.Matched, 2)
	assert.EqualValues(t, 1, rec.Matched[0].ID)
	assert.EqualValues(t, 2, rec.Matched[1].ID)
	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, stocksvc.Delta{ProductID: 7, WarehouseID: 2, Change: 1}, rec.Deltas[0])
}

// Net stock movement per product must always equal old quantity minus new
// quantity, regardless of how lines pair up.
func TestReconcileDeltaConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		var persisted []*entity.OrderLine
		oldQty := map[int64]int64{}
		for j := 0; j < rng.Intn(6); j++ {
			productID := int64(1 + rng.Intn(4))
			discount := decimal.NewFromInt(int64(rng.Intn(3) * 10))
			l := line(int64(j+1), productID, 1, int64(1+rng.Intn(9)), "10", discount.String())
			persisted = append(persisted, l)
			oldQty[productID] += l.Quantity
		}

		var submitted []LineInput
		newQty := map[int64]int64{}
		for j := 0; j < rng.Intn(6); j++ {
			productID := int64(1 + rng.Intn(4))
			in := LineInput{
				ProductID:   productID,
				WarehouseID: 1,
				Quantity:    int64(1 + rng.Intn(9)),
				UnitPrice:   decimal.NewFromInt(10),
				Discount:    decimal.NewFromInt(int64(rng.Intn(3) * 10)),
			}
			submitted = append(submitted, in)
			newQty[productID] += in.Quantity
		}

		rec := Reconcile(persisted, submitted, nil, time.Now())

		net := map[int64]int64{}
		for _, d := range rec.Deltas {
			net[d.ProductID] += d.Change
		}
		for productID := int64(1); productID <= 4; productID++ {
			assert.Equal(t, oldQty[productID]-newQty[productID], net[productID],
				"iteration %d product %d", i, productID)
		}
	}
}
