package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/entity"
)

type pair struct {
	productID   int64
	warehouseID int64
}

// fakeEntries is an in-memory stand-in for the transactional stock store.
// The mutex makes the conditional decrement atomic, mirroring the row-level
// guarantee of the SQL UPDATE.
type fakeEntries struct {
	mu      sync.Mutex
	onHand  map[pair]int64
	missing map[pair]bool
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{onHand: map[pair]int64{}, missing: map[pair]bool{}}
}

func (f *fakeEntries) set(productID, warehouseID, qty int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onHand[pair{productID, warehouseID}] = qty
}

func (f *fakeEntries) DecrementIfAvailable(_ context.Context, productID, warehouseID, qty int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pair{productID, warehouseID}
	if _, ok := f.onHand[k]; !ok {
		return false, nil
	}
	if f.onHand[k] < qty {
		return false, nil
	}
	f.onHand[k] -= qty
	return true, nil
}

func (f *fakeEntries) Increment(_ context.Context, productID, warehouseID, qty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pair{productID, warehouseID}
	if _, ok := f.onHand[k]; !ok {
		return ErrStockNotFound
	}
	f.onHand[k] += qty
	return nil
}

func (f *fakeEntries) Exists(_ context.Context, productID, warehouseID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.onHand[pair{productID, warehouseID}]
	return ok, nil
}

type fakeReader struct {
	byProduct map[int64]int64
	entries   map[pair]*entity.StockEntry
}

func (f *fakeReader) OnHandByProduct(_ context.Context, productIDs []int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, id := range productIDs {
		if qty, ok := f.byProduct[id]; ok {
			out[id] = qty
		}
	}
	return out, nil
}

func (f *fakeReader) Get(_ context.Context, productID, warehouseID int64) (*entity.StockEntry, error) {
	entry, ok := f.entries[pair{productID, warehouseID}]
	if !ok {
		return nil, ErrStockNotFound
	}
	return entry, nil
}

func testLedger(reader Reader) *Ledger {
	return &Ledger{reader: reader, logger: zap.NewNop()}
}

func TestCheckAvailabilitySufficient(t *testing.T) {
	ledger := testLedger(&fakeReader{byProduct: map[int64]int64{7: 10}})

	err := ledger.CheckAvailability(context.Background(), []AvailabilityRequest{
		{ProductID: 7, Quantity: 10},
	}, nil)
	assert.NoError(t, err)
}

func TestCheckAvailabilityInsufficient(t *testing.T) {
	ledger := testLedger(&fakeReader{byProduct: map[int64]int64{7: 10}})

	err := ledger.CheckAvailability(context.Background(), []AvailabilityRequest{
		{ProductID: 7, Quantity: 11},
	}, nil)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCheckAvailabilityAggregatesPerProduct(t *testing.T) {
	ledger := testLedger(&fakeReader{byProduct: map[int64]int64{7: 10}})

	err := ledger.CheckAvailability(context.Background(), []AvailabilityRequest{
		{ProductID: 7, Quantity: 6},
		{ProductID: 7, Quantity: 5},
	}, nil)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCheckAvailabilityReliefAllowsRegrowth(t *testing.T) {
	// 2 left on hand, the order already holds 5: it may grow back to 7.
	ledger := testLedger(&fakeReader{byProduct: map[int64]int64{7: 2}})
	relief := map[int64]int64{7: 5}

	err := ledger.CheckAvailability(context.Background(), []AvailabilityRequest{
		{ProductID: 7, Quantity: 7},
	}, relief)
	assert.NoError(t, err)

	err = ledger.CheckAvailability(context.Background(), []AvailabilityRequest{
		{ProductID: 7, Quantity: 8},
	}, relief)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCheckAvailabilityUnknownProductReadsAsZero(t *testing.T) {
	ledger := testLedger(&fakeReader{byProduct: map[int64]int64{}})

	err := ledger.CheckAvailability(context.Background(), []AvailabilityRequest{
		{ProductID: 99, Quantity: 1},
	}, nil)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestApplyDeltasRoundTrip(t *testing.T) {
	entries := newFakeEntries()
	entries.set(7, 1, 10)
	ledger := testLedger(nil)
	ctx := context.Background()

	require.NoError(t, ledger.ApplyDeltas(ctx, entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: -4}}))
	assert.EqualValues(t, 6, entries.onHand[pair{7, 1}])

	require.NoError(t, ledger.ApplyDeltas(ctx, entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: 4}}))
	assert.EqualValues(t, 10, entries.onHand[pair{7, 1}])
}

func TestApplyDeltasDrainToZeroThenRefuse(t *testing.T) {
	entries := newFakeEntries()
	entries.set(7, 1, 5)
	ledger := testLedger(nil)
	ctx := context.Background()

	require.NoError(t, ledger.ApplyDeltas(ctx, entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: -5}}))
	assert.EqualValues(t, 0, entries.onHand[pair{7, 1}])

	err := ledger.ApplyDeltas(ctx, entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: -1}})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.EqualValues(t, 0, entries.onHand[pair{7, 1}])
}

// A reconciled batch can net to zero on a product the order fully reserves,
// a discount change being the common case. Returns must land before charges
// or the conditional decrement refuses a batch the availability check
// already cleared through relief.
func TestApplyDeltasNetZeroAgainstDrainedEntry(t *testing.T) {
	entries := newFakeEntries()
	entries.set(7, 1, 0)
	ledger := testLedger(nil)

	err := ledger.ApplyDeltas(context.Background(), entries, []Delta{
		{ProductID: 7, WarehouseID: 1, Change: -5},
		{ProductID: 7, WarehouseID: 1, Change: 5},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, entries.onHand[pair{7, 1}])
}

// Quantity moved between two lines of one product at the same warehouse is
// the same shape: charge 3 and return 3 against 2 on hand.
func TestApplyDeltasSameProductRebalance(t *testing.T) {
	entries := newFakeEntries()
	entries.set(7, 1, 2)
	ledger := testLedger(nil)

	err := ledger.ApplyDeltas(context.Background(), entries, []Delta{
		{ProductID: 7, WarehouseID: 1, Change: -3},
		{ProductID: 7, WarehouseID: 1, Change: 3},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, entries.onHand[pair{7, 1}])
}

func TestApplyDeltasMissingEntry(t *testing.T) {
	entries := newFakeEntries()
	ledger := testLedger(nil)
	ctx := context.Background()

	err := ledger.ApplyDeltas(ctx, entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: -1}})
	assert.ErrorIs(t, err, ErrStockNotFound)

	err = ledger.ApplyDeltas(ctx, entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: 1}})
	assert.ErrorIs(t, err, ErrStockNotFound)
}

func TestApplyDeltasZeroChangeIsSkipped(t *testing.T) {
	entries := newFakeEntries()
	entries.set(7, 1, 3)
	ledger := testLedger(nil)

	require.NoError(t, ledger.ApplyDeltas(context.Background(), entries, []Delta{{ProductID: 7, WarehouseID: 1, Change: 0}}))
	assert.EqualValues(t, 3, entries.onHand[pair{7, 1}])
}

// Two writers race for the last 5 units; the conditional decrement must let
// exactly one through.
func TestApplyDeltasConcurrentLastUnits(t *testing.T) {
	for round := 0; round < 50; round++ {
		entries := newFakeEntries()
		entries.set(7, 1, 5)
		ledger := testLedger(nil)

		results := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- ledger.ApplyDeltas(context.Background(), entries, []Delta{
					{ProductID: 7, WarehouseID: 1, Change: -5},
				})
			}()
		}
		wg.Wait()
		close(results)

		var succeeded, refused int
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				require.ErrorIs(t, err, ErrInsufficientStock)
				refused++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, refused)
		assert.EqualValues(t, 0, entries.onHand[pair{7, 1}])
	}
}

func TestOnHand(t *testing.T) {
	entry := &entity.StockEntry{ID: 1, ProductID: 7, WarehouseID: 1, Quantity: 12}
	ledger := testLedger(&fakeReader{entries: map[pair]*entity.StockEntry{{7, 1}: entry}})

	got, err := ledger.OnHand(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = ledger.OnHand(context.Background(), 8, 1)
	assert.Error(t, err)
}
