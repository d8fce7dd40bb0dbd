package stock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/meridian/internal/database"
	"github.com/Additional-Code/meridian/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/meridian/repository/stock")

// ErrNotFound is returned when no stock entry exists for a (product, warehouse) pair.
var ErrNotFound = errors.New("stock entry not found")

// Repository owns all reads and writes against stock entries. No other
// component touches the stock_entries table.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *Repository) WithTx(tx bun.IDB) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// Get fetches the stock entry for a (product, warehouse) pair.
func (r *Repository) Get(ctx context.Context, productID, warehouseID int64) (*entity.StockEntry, error) {
	entry := new(entity.StockEntry)
	err := r.reader.NewSelect().Model(entry).
		Where("se.product_id = ?", productID).
		Where("se.warehouse_id = ?", warehouseID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Exists reports whether an entry exists for the (product, warehouse) pair.
func (r *Repository) Exists(ctx context.Context, productID, warehouseID int64) (bool, error) {
	return r.reader.NewSelect().Model((*entity.StockEntry)(nil)).
		Where("se.product_id = ?", productID).
		Where("se.warehouse_id = ?", warehouseID).
		Exists(ctx)
}

// OnHandByProduct returns the summed on-hand quantity per product across all
// warehouses. Products without entries are absent from the result.
func (r *Repository) OnHandByProduct(ctx context.Context, productIDs []int64) (map[int64]int64, error) {
	if len(productIDs) == 0 {
		return map[int64]int64{}, nil
	}
	ctx, span := repoTracer.Start(ctx, "StockRepository.OnHandByProduct", trace.WithAttributes(attribute.Int("products", len(productIDs))))
	defer span.End()

	var rows []struct {
		ProductID int64 `bun:"product_id"`
		OnHand    int64 `bun:"on_hand"`
	}
	err := r.reader.NewSelect().Model((*entity.StockEntry)(nil)).
		Column("product_id").
		ColumnExpr("SUM(quantity) AS on_hand").
		Where("product_id IN (?)", bun.In(productIDs)).
		Group("product_id").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	onHand := make(map[int64]int64, len(rows))
	for _, row := range rows {
		onHand[row.ProductID] = row.OnHand
	}
	return onHand, nil
}

// DecrementIfAvailable atomically subtracts qty from the entry's on-hand
// count, but only when enough stock remains. The conditional form is what
// serializes concurrent check+apply sequences: of two transactions racing
// for the same units, only one finds the WHERE clause satisfied.
func (r *Repository) DecrementIfAvailable(ctx context.Context, productID, warehouseID, qty int64) (bool, error) {
	res, err := r.writer.NewUpdate().Model((*entity.StockEntry)(nil)).
		Set("quantity = quantity - ?", qty).
		Set("updated_at = ?", time.Now().UTC()).
		Where("product_id = ?", productID).
		Where("warehouse_id = ?", warehouseID).
		Where("quantity >= ?", qty).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Increment adds qty back to the entry's on-hand count.
func (r *Repository) Increment(ctx context.Context, productID, warehouseID, qty int64) error {
	res, err := r.writer.NewUpdate().Model((*entity.StockEntry)(nil)).
		Set("quantity = quantity + ?", qty).
		Set("updated_at = ?", time.Now().UTC()).
		Where("product_id = ?", productID).
		Where("warehouse_id = ?", warehouseID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert merges a stock-in: an existing (product, warehouse) entry is
// incremented by qty, otherwise a new entry is created. The lookup-before-
// insert keeps the pair unique.
func (r *Repository) Upsert(ctx context.Context, productID, warehouseID, qty int64) (*entity.StockEntry, error) {
	ctx, span := repoTracer.Start(ctx, "StockRepository.Upsert", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("warehouse.id", warehouseID),
	))
	defer span.End()

	entry := new(entity.StockEntry)
	err := r.writer.NewSelect().Model(entry).
		Where("se.product_id = ?", productID).
		Where("se.warehouse_id = ?", warehouseID).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		entry = &entity.StockEntry{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    qty,
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := r.writer.NewInsert().Model(entry).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")
			return nil, err
		}
		return entry, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	if err := r.Increment(ctx, productID, warehouseID, qty); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment failed")
		return nil, err
	}
	entry.Quantity += qty
	return entry, nil
}
