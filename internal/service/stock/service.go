package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/config"
	"github.com/Additional-Code/meridian/internal/database"
	"github.com/Additional-Code/meridian/internal/entity"
	"github.com/Additional-Code/meridian/internal/messaging"
	"github.com/Additional-Code/meridian/internal/observability"
	catalogrepo "github.com/Additional-Code/meridian/internal/repository/catalog"
	stockrepo "github.com/Additional-Code/meridian/internal/repository/stock"
	"github.com/Additional-Code/meridian/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/meridian/service/stock")

// Sentinel errors surfaced by the ledger.
var (
	// ErrInsufficientStock reports that a requested quantity exceeds what is
	// on hand plus any relief from the order being edited.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStockNotFound reports a delta against a (product, warehouse) pair
	// that has no stock entry.
	ErrStockNotFound = errors.New("stock entry not found")
)

// AvailabilityRequest asks whether quantity units of a product can be sold.
type AvailabilityRequest struct {
	ProductID int64
	Quantity  int64
}

// Delta is one signed stock movement against a (product, warehouse) entry.
// Negative deltas charge stock (sale, quantity increase); positive deltas
// return it (removal, cancellation, quantity decrease).
type Delta struct {
	ProductID   int64
	WarehouseID int64
	Change      int64
}

// Reader is the read-side slice of the stock repository the ledger consumes.
type Reader interface {
	OnHandByProduct(ctx context.Context, productIDs []int64) (map[int64]int64, error)
	Get(ctx context.Context, productID, warehouseID int64) (*entity.StockEntry, error)
}

// EntryTx is the transactional write surface deltas are applied through.
type EntryTx interface {
	DecrementIfAvailable(ctx context.Context, productID, warehouseID, qty int64) (bool, error)
	Increment(ctx context.Context, productID, warehouseID, qty int64) error
	Exists(ctx context.Context, productID, warehouseID int64) (bool, error)
}

// Directory resolves the product and warehouse references a stock-in names.
type Directory interface {
	Product(ctx context.Context, id int64) (*entity.Product, error)
	Warehouse(ctx context.Context, id int64) (*entity.Warehouse, error)
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
}

// Ledger owns per (product, warehouse) on-hand quantities. All stock
// mutation in the system goes through it.
type Ledger struct {
	conns     *database.Connections
	repo      *stockrepo.Repository
	reader    Reader
	directory Directory
	txTimeout time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	metrics   *observability.SalesMetrics
}

// Params defines dependencies for constructing Ledger.
type Params struct {
	fx.In

	Conns      *database.Connections
	Repository *stockrepo.Repository
	Catalog    *catalogrepo.Repository
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Metrics    *observability.SalesMetrics
}

// NewLedger wires a new Ledger instance.
func NewLedger(p Params) *Ledger {
	return &Ledger{
		conns:     p.Conns,
		repo:      p.Repository,
		reader:    p.Repository,
		directory: p.Catalog,
		txTimeout: p.Config.Database.TxTimeout,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{enabled: p.Config.Messaging.Enabled},
		metrics:   p.Metrics,
	}
}

// CheckAvailability verifies that every requested quantity is covered by
// on-hand stock plus the relief quantity previously reserved on the order
// being edited. The check reads committed state only; the authoritative
// guard is the conditional decrement in ApplyDeltas.
func (l *Ledger) CheckAvailability(ctx context.Context, requests []AvailabilityRequest, relief map[int64]int64) error {
	if len(requests) == 0 {
		return nil
	}
	ctx, span := serviceTracer.Start(ctx, "StockLedger.CheckAvailability", trace.WithAttributes(attribute.Int("requests", len(requests))))
	defer span.End()

	requested := make(map[int64]int64, len(requests))
	ids := make([]int64, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return errorbank.BadRequest(fmt.Sprintf("non-positive quantity for product %d", req.ProductID))
		}
		if _, seen := requested[req.ProductID]; !seen {
			ids = append(ids, req.ProductID)
		}
		requested[req.ProductID] += req.Quantity
	}

	onHand, err := l.reader.OnHandByProduct(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock read failed")
		return err
	}

	for _, id := range ids {
		available := onHand[id] + relief[id]
		if requested[id] > available {
			return fmt.Errorf("product %d: requested %d, available %d: %w", id, requested[id], available, ErrInsufficientStock)
		}
	}
	return nil
}

// ApplyDeltas applies a batch of signed stock movements through the given
// transaction. The batch is all-or-nothing: the first failure aborts and the
// surrounding transaction must roll back. Returns are applied before charges:
// a reconciliation that nets to zero on a product the order fully reserves
// (a discount change, quantity moved between two lines of one product) must
// see its own returned units before the conditional decrement runs. Negative
// deltas use the atomic conditional decrement, so a concurrent transaction
// that drained the stock after CheckAvailability passed turns into
// ErrInsufficientStock here rather than a negative on-hand count.
func (l *Ledger) ApplyDeltas(ctx context.Context, tx EntryTx, deltas []Delta) error {
	ctx, span := serviceTracer.Start(ctx, "StockLedger.ApplyDeltas", trace.WithAttributes(attribute.Int("deltas", len(deltas))))
	defer span.End()

	for _, delta := range deltas {
		if delta.Change <= 0 {
			continue
		}
		if err := tx.Increment(ctx, delta.ProductID, delta.WarehouseID, delta.Change); err != nil {
			if errors.Is(err, stockrepo.ErrNotFound) {
				return fmt.Errorf("product %d warehouse %d: %w", delta.ProductID, delta.WarehouseID, ErrStockNotFound)
			}
			span.RecordError(err)
			return err
		}
	}

	for _, delta := range deltas {
		if delta.Change >= 0 {
			continue
		}
		qty := -delta.Change
		ok, err := tx.DecrementIfAvailable(ctx, delta.ProductID, delta.WarehouseID, qty)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decrement failed")
			return err
		}
		if ok {
			continue
		}
		exists, err := tx.Exists(ctx, delta.ProductID, delta.WarehouseID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !exists {
			return fmt.Errorf("product %d warehouse %d: %w", delta.ProductID, delta.WarehouseID, ErrStockNotFound)
		}
		if l.logger != nil {
			l.logger.Warn("stock drained concurrently after availability check",
				zap.Int64("product_id", delta.ProductID),
				zap.Int64("warehouse_id", delta.WarehouseID),
				zap.Int64("requested", qty),
			)
		}
		return fmt.Errorf("product %d: requested %d: %w", delta.ProductID, qty, ErrInsufficientStock)
	}
	return nil
}

// Receive books a stock-in: the (product, warehouse) entry is incremented,
// or created when the pair is new. Merge semantics are load-bearing for
// repeated receivings against the same pair.
func (l *Ledger) Receive(ctx context.Context, productID, warehouseID, quantity int64) (*entity.StockEntry, error) {
	if quantity <= 0 {
		return nil, errorbank.BadRequest("received quantity must be positive")
	}
	ctx, span := serviceTracer.Start(ctx, "StockLedger.Receive", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("warehouse.id", warehouseID),
		attribute.Int64("quantity", quantity),
	))
	defer span.End()

	if _, err := l.directory.Product(ctx, productID); err != nil {
		if errors.Is(err, catalogrepo.ErrProductNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve product", errorbank.WithCause(err))
	}
	if _, err := l.directory.Warehouse(ctx, warehouseID); err != nil {
		if errors.Is(err, catalogrepo.ErrWarehouseNotFound) {
			return nil, errorbank.NotFound("warehouse not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve warehouse", errorbank.WithCause(err))
	}

	var entry *entity.StockEntry
	err := l.conns.RunInTx(ctx, l.txTimeout, func(ctx context.Context, tx bun.Tx) error {
		var err error
		entry, err = l.repo.WithTx(tx).Upsert(ctx, productID, warehouseID, quantity)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "receive failed")
		return nil, errorbank.Internal("failed to receive stock", errorbank.WithCause(err))
	}

	l.metrics.StockReceived(ctx, quantity)
	l.publishReceived(ctx, entry, quantity)
	return entry, nil
}

// OnHand returns the current entry for a (product, warehouse) pair.
func (l *Ledger) OnHand(ctx context.Context, productID, warehouseID int64) (*entity.StockEntry, error) {
	entry, err := l.reader.Get(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, stockrepo.ErrNotFound) {
			return nil, errorbank.NotFound("stock entry not found")
		}
		return nil, errorbank.Internal("failed to load stock entry", errorbank.WithCause(err))
	}
	return entry, nil
}

func (l *Ledger) publishReceived(ctx context.Context, entry *entity.StockEntry, received int64) {
	if !l.messaging.enabled || l.publisher == nil || entry == nil {
		return
	}
	event := StockReceivedEvent{
		Kind:        EventStockReceived,
		EntryID:     entry.ID,
		ProductID:   entry.ProductID,
		WarehouseID: entry.WarehouseID,
		Received:    received,
		OnHand:      entry.Quantity,
		At:          time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("marshal stock received", zap.Error(err))
		}
		return
	}
	key := []byte(fmt.Sprintf("stock-%d-%d", entry.ProductID, entry.WarehouseID))
	if err := l.publisher.Publish(ctx, key, payload); err != nil {
		if l.logger != nil {
			l.logger.Error("publish stock received", zap.Error(err))
		}
	}
}

// EventStockReceived tags stock-in events on the shared sales topic.
const EventStockReceived = "stock.received"

// StockReceivedEvent is emitted after a stock-in commits.
type StockReceivedEvent struct {
	Kind        string    `json:"kind"`
	EntryID     int64     `json:"entry_id"`
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	Received    int64     `json:"received"`
	OnHand      int64     `json:"on_hand"`
	At          time.Time `json:"at"`
}
