package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/cache"
	"github.com/Additional-Code/meridian/internal/config"
	"github.com/Additional-Code/meridian/internal/database"
	"github.com/Additional-Code/meridian/internal/entity"
	"github.com/Additional-Code/meridian/internal/messaging"
	"github.com/Additional-Code/meridian/internal/observability"
	catalogrepo "github.com/Additional-Code/meridian/internal/repository/catalog"
	orderrepo "github.com/Additional-Code/meridian/internal/repository/order"
	stockrepo "github.com/Additional-Code/meridian/internal/repository/stock"
	stocksvc "github.com/Additional-Code/meridian/internal/service/stock"
	"github.com/Additional-Code/meridian/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/meridian/service/order")

// OrderStore is the persistence surface the lifecycle reads and mutates
// orders through. *orderrepo.Repository implements it.
type OrderStore interface {
	Insert(ctx context.Context, order *entity.Order) error
	InsertLines(ctx context.Context, lines []*entity.OrderLine) error
	Update(ctx context.Context, order *entity.Order) error
	UpdateLine(ctx context.Context, line *entity.OrderLine) error
	DeleteLines(ctx context.Context, ids []int64) error
	SoftDeleteLines(ctx context.Context, ids []int64, at time.Time) error
	HardDelete(ctx context.Context, orderID int64) error
	Passivate(ctx context.Context, order *entity.Order, at time.Time) error
	GetWithLines(ctx context.Context, id int64) (*entity.Order, error)
	ExistsActiveOrderReferencing(ctx context.Context, productID, excludeOrderID int64) (bool, error)
}

// Tx bundles the transaction-bound stores a unit of work mutates.
type Tx interface {
	Orders() OrderStore
	Stock() stocksvc.EntryTx
}

// UnitOfWork runs a function inside one all-or-nothing transaction spanning
// order persistence and stock mutation.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Catalog resolves the external references an order names.
type Catalog interface {
	Product(ctx context.Context, id int64) (*entity.Product, error)
	Customer(ctx context.Context, id int64) (*entity.Customer, error)
	ResolveActor(ctx context.Context, externalID string) (entity.Actor, error)
}

// StockGuard is the slice of the stock ledger the lifecycle consumes.
type StockGuard interface {
	CheckAvailability(ctx context.Context, requests []stocksvc.AvailabilityRequest, relief map[int64]int64) error
	ApplyDeltas(ctx context.Context, tx stocksvc.EntryTx, deltas []stocksvc.Delta) error
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
}

// Service orchestrates the order lifecycle: create, update, delete. Every
// mutation validates stock through the ledger and commits order and stock
// changes in one transaction.
type Service struct {
	uow       UnitOfWork
	orders    OrderStore
	catalog   Catalog
	stock     StockGuard
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	metrics   *observability.SalesMetrics
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Conns      *database.Connections
	Repository *orderrepo.Repository
	StockRepo  *stockrepo.Repository
	Catalog    *catalogrepo.Repository
	Ledger     *stocksvc.Ledger
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Metrics    *observability.SalesMetrics
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		uow: &bunUnitOfWork{
			conns:   p.Conns,
			timeout: p.Config.Database.TxTimeout,
			orders:  p.Repository,
			stock:   p.StockRepo,
		},
		orders:    p.Repository,
		catalog:   p.Catalog,
		stock:     p.Ledger,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{enabled: p.Config.Messaging.Enabled},
		metrics:   p.Metrics,
	}
}

// CreateOrderInput describes a proposed order.
type CreateOrderInput struct {
	CustomerID      int64
	ActorExternalID string
	Currency        entity.Currency
	Lines           []LineInput
}

// UpdateOrderInput is the full desired line set for an existing order.
type UpdateOrderInput struct {
	OrderID int64
	Lines   []LineInput
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	order, err := s.orders.GetWithLines(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// Create commits a proposed order: validates its references, snapshots
// purchase prices, checks stock sufficiency, then persists order, lines and
// stock deltas in one transaction.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int("order.lines", len(in.Lines))))
	defer span.End()

	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}
	if !in.Currency.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown currency %q", in.Currency))
	}

	actor, err := s.catalog.ResolveActor(ctx, in.ActorExternalID)
	if err != nil {
		if errors.Is(err, catalogrepo.ErrActorNotFound) {
			return nil, errorbank.NotFound("order actor not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve actor", errorbank.WithCause(err))
	}

	if _, err := s.catalog.Customer(ctx, in.CustomerID); err != nil {
		if errors.Is(err, catalogrepo.ErrCustomerNotFound) {
			return nil, errorbank.NotFound("customer not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve customer", errorbank.WithCause(err))
	}

	costs, err := s.snapshotCosts(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	if err := s.stock.CheckAvailability(ctx, availabilityOf(in.Lines), nil); err != nil {
		s.countRefusal(ctx, err)
		return nil, mapStockErr(err)
	}

	now := time.Now().UTC()
	rec := Reconcile(nil, in.Lines, costs, now)
	order := &entity.Order{
		CustomerID: in.CustomerID,
		Actor:      actor,
		Currency:   in.Currency,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines:      rec.Inserted,
	}
	order.RecomputeTotal()

	err = s.uow.Within(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Orders().Insert(ctx, order); err != nil {
			return err
		}
		return s.stock.ApplyDeltas(ctx, tx.Stock(), rec.Deltas)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create transaction failed")
		s.countRefusal(ctx, err)
		return nil, mapTxErr(err, "failed to create order")
	}
	s.metrics.OrderCreated(ctx)

	if err := s.storeInCache(ctx, order); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
	s.publishEvent(ctx, EventOrderCreated, order)
	return order, nil
}

// Update reconciles the submitted line set against the persisted one and
// applies the resulting line mutations and stock deltas atomically. The
// availability check relieves each product by the quantity the order already
// holds, so a line may grow back up to its own reservation.
func (s *Service) Update(ctx context.Context, in UpdateOrderInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", in.OrderID)))
	defer span.End()

	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}

	order, err := s.orders.GetWithLines(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if !order.Active || !order.DeletedAt.IsZero() {
		return nil, errorbank.Unprocessable("order is not active")
	}

	costs, err := s.snapshotCosts(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	relief := make(map[int64]int64, len(order.Lines))
	for _, line := range order.Lines {
		relief[line.ProductID] += line.Quantity
	}
	if err := s.stock.CheckAvailability(ctx, availabilityOf(in.Lines), relief); err != nil {
		s.countRefusal(ctx, err)
		return nil, mapStockErr(err)
	}

	now := time.Now().UTC()
	rec := Reconcile(order.Lines, in.Lines, costs, now)
	if len(rec.WarehouseMoves) > 0 {
		m := rec.WarehouseMoves[0]
		return nil, errorbank.BadRequest(fmt.Sprintf(
			"line for product %d cannot move from warehouse %d to warehouse %d; remove the line and add a new one", m.ProductID, m.From, m.To))
	}

	removedIDs := make([]int64, 0, len(rec.Removed))
	for _, line := range rec.Removed {
		removedIDs = append(removedIDs, line.ID)
	}

	order.Lines = rec.Lines()
	order.RecomputeTotal()
	order.UpdatedAt = now

	err = s.uow.Within(ctx, func(ctx context.Context, tx Tx) error {
		for _, line := range rec.Matched {
			if err := tx.Orders().UpdateLine(ctx, line); err != nil {
				return err
			}
		}
		for _, line := range rec.Inserted {
			line.OrderID = order.ID
		}
		if err := tx.Orders().InsertLines(ctx, rec.Inserted); err != nil {
			return err
		}
		if err := tx.Orders().DeleteLines(ctx, removedIDs); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}
		return s.stock.ApplyDeltas(ctx, tx.Stock(), rec.Deltas)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update transaction failed")
		s.countRefusal(ctx, err)
		return nil, mapTxErr(err, "failed to update order")
	}
	s.metrics.OrderUpdated(ctx)

	if err := s.storeInCache(ctx, order); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
	s.publishEvent(ctx, EventOrderUpdated, order)
	return order, nil
}

// Delete removes an order, returning every line's quantity to stock. When a
// line's product is still referenced by another active order the order is
// passivated instead of hard-deleted (two-step deletion protocol).
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetWithLines(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	hardDelete, err := s.canHardDelete(ctx, order)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to check order references", errorbank.WithCause(err))
	}

	now := time.Now().UTC()
	deltas := make([]stocksvc.Delta, 0, len(order.Lines))
	lineIDs := make([]int64, 0, len(order.Lines))
	for _, line := range order.Lines {
		deltas = append(deltas, stocksvc.Delta{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Change:      line.Quantity,
		})
		lineIDs = append(lineIDs, line.ID)
	}

	err = s.uow.Within(ctx, func(ctx context.Context, tx Tx) error {
		if err := s.stock.ApplyDeltas(ctx, tx.Stock(), deltas); err != nil {
			return err
		}
		if hardDelete {
			return tx.Orders().HardDelete(ctx, order.ID)
		}
		if err := tx.Orders().SoftDeleteLines(ctx, lineIDs, now); err != nil {
			return err
		}
		return tx.Orders().Passivate(ctx, order, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete transaction failed")
		return mapTxErr(err, "failed to delete order")
	}
	s.metrics.OrderDeleted(ctx)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cacheKey(order.ID)); err != nil && s.logger != nil {
			s.logger.Warn("orders cache delete failed", zap.Int64("id", order.ID), zap.Error(err))
		}
	}
	s.publishEvent(ctx, EventOrderDeleted, order)
	return nil
}

// canHardDelete reports whether no other active order references any of the
// order's products. When references exist the order is passivated instead.
func (s *Service) canHardDelete(ctx context.Context, order *entity.Order) (bool, error) {
	for _, line := range order.Lines {
		referenced, err := s.orders.ExistsActiveOrderReferencing(ctx, line.ProductID, order.ID)
		if err != nil {
			return false, err
		}
		if referenced {
			return false, nil
		}
	}
	return true, nil
}

// snapshotCosts validates every referenced product and returns the purchase
// price snapshot per product.
func (s *Service) snapshotCosts(ctx context.Context, lines []LineInput) (map[int64]decimal.Decimal, error) {
	costs := make(map[int64]decimal.Decimal, len(lines))
	for _, line := range lines {
		if _, seen := costs[line.ProductID]; seen {
			continue
		}
		product, err := s.catalog.Product(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalogrepo.ErrProductNotFound) {
				return nil, errorbank.NotFound(fmt.Sprintf("product %d not found", line.ProductID))
			}
			return nil, errorbank.Internal("failed to resolve product", errorbank.WithCause(err))
		}
		if !product.Sellable() {
			return nil, errorbank.Unprocessable(fmt.Sprintf("product %d is not sellable", line.ProductID))
		}
		costs[line.ProductID] = product.PurchasePrice
	}
	return costs, nil
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return errorbank.BadRequest("order requires at least one line")
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return errorbank.BadRequest("line product reference is required")
		}
		if line.WarehouseID <= 0 {
			return errorbank.BadRequest("line warehouse reference is required")
		}
		if line.Quantity <= 0 {
			return errorbank.BadRequest(fmt.Sprintf("non-positive quantity for product %d", line.ProductID))
		}
		if line.UnitPrice.IsNegative() {
			return errorbank.BadRequest(fmt.Sprintf("negative unit price for product %d", line.ProductID))
		}
		if line.Discount.IsNegative() || line.Discount.GreaterThan(decimal.NewFromInt(100)) {
			return errorbank.BadRequest(fmt.Sprintf("discount out of range for product %d", line.ProductID))
		}
	}
	return nil
}

func availabilityOf(lines []LineInput) []stocksvc.AvailabilityRequest {
	requests := make([]stocksvc.AvailabilityRequest, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, stocksvc.AvailabilityRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return requests
}

func (s *Service) countRefusal(ctx context.Context, err error) {
	if errors.Is(err, stocksvc.ErrInsufficientStock) {
		s.metrics.StockRefused(ctx)
	}
}

func mapStockErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stocksvc.ErrInsufficientStock):
		return errorbank.Unprocessable(err.Error())
	case errors.Is(err, stocksvc.ErrStockNotFound):
		return errorbank.NotFound(err.Error())
	default:
		return errorbank.From(err)
	}
}

func mapTxErr(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stocksvc.ErrInsufficientStock), errors.Is(err, stocksvc.ErrStockNotFound):
		return mapStockErr(err)
	case errors.Is(err, context.DeadlineExceeded):
		return errorbank.Internal("transaction timed out", errorbank.WithCause(err))
	default:
		var appErr *errorbank.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return errorbank.Internal(message, errorbank.WithCause(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}
