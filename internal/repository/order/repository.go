package order

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

var repoTracer = otel.Tracer("github.com/Additional-Code/meridian/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders and their lines.
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

// Insert persists a new order together with its lines.
func (r *Repository) Insert(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Insert", trace.WithAttributes(attribute.Int("order.lines", len(order.Lines))))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert order failed")
		return err
	}
	for _, line := range order.Lines {
		line.OrderID = order.ID
	}
	if err := r.InsertLines(ctx, order.Lines); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert lines failed")
		return err
	}
	return nil
}

// InsertLines persists new order lines.
func (r *Repository) InsertLines(ctx context.Context, lines []*entity.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := r.writer.NewInsert().Model(&lines).Exec(ctx)
	return err
}

// Update persists mutable order columns.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	_, err := r.writer.NewUpdate().Model(order).
		Column("total_price", "active", "updated_at", "deleted_at").
		WherePK().
		Exec(ctx)
	return err
}

// UpdateLine persists the reconciled quantity, discount and total of a line.
func (r *Repository) UpdateLine(ctx context.Context, line *entity.OrderLine) error {
	if line == nil {
		return errors.New("nil order line")
	}
	_, err := r.writer.NewUpdate().Model(line).
		Column("quantity", "discount", "total").
		WherePK().
		Exec(ctx)
	return err
}

// DeleteLines removes order lines by primary key.
func (r *Repository) DeleteLines(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.writer.NewDelete().Model((*entity.OrderLine)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

// SoftDeleteLines marks order lines deleted without removing the rows.
func (r *Repository) SoftDeleteLines(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.writer.NewUpdate().Model((*entity.OrderLine)(nil)).
		Set("deleted_at = ?", at).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

// HardDelete removes the order and every line it owns.
func (r *Repository) HardDelete(ctx context.Context, orderID int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.HardDelete", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if _, err := r.writer.NewDelete().Model((*entity.OrderLine)(nil)).
		Where("order_id = ?", orderID).
		Exec(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	if _, err := r.writer.NewDelete().Model((*entity.Order)(nil)).
		Where("id = ?", orderID).
		Exec(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Passivate marks the order inactive instead of removing it, keeping its
// lines for historical reporting.
func (r *Repository) Passivate(ctx context.Context, order *entity.Order, at time.Time) error {
	if order == nil {
		return errors.New("nil order")
	}
	order.Active = false
	order.DeletedAt = at
	order.UpdatedAt = at
	_, err := r.writer.NewUpdate().Model(order).
		Column("active", "deleted_at", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// GetWithLines fetches an order and its non-deleted lines.
func (r *Repository) GetWithLines(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetWithLines", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Customer").
		Relation("Lines", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("deleted_at IS NULL")
		}).
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ActiveInWindow returns all active, non-deleted orders created inside the
// window, with buyer and line/product relations loaded for reporting.
func (r *Repository) ActiveInWindow(ctx context.Context, start, end time.Time) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ActiveInWindow")
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Customer").
		Relation("Lines", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("deleted_at IS NULL")
		}).
		Relation("Lines.Product").
		Where("o.active").
		Where("o.deleted_at IS NULL").
		Where("o.created_at >= ?", start).
		Where("o.created_at <= ?", end).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ExistsActiveOrderReferencing reports whether any active order other than
// excludeOrderID still carries a line for the product. Used by the
// passivation-over-deletion policy.
func (r *Repository) ExistsActiveOrderReferencing(ctx context.Context, productID, excludeOrderID int64) (bool, error) {
	return r.reader.NewSelect().Model((*entity.OrderLine)(nil)).
		Join("JOIN orders AS o ON o.id = ol.order_id").
		Where("ol.product_id = ?", productID).
		Where("ol.deleted_at IS NULL").
		Where("o.active").
		Where("o.deleted_at IS NULL").
		Where("o.id != ?", excludeOrderID).
		Exists(ctx)
}
