package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// SalesMetrics bundles the business-level counters the order and stock
// services report. Instruments come from the global meter, so they follow
// whatever provider the manager installs.
type SalesMetrics struct {
	ordersCreated metric.Int64Counter
	ordersUpdated metric.Int64Counter
	ordersDeleted metric.Int64Counter
	stockReceived metric.Int64Counter
	stockRefusals metric.Int64Counter
}

// NewSalesMetrics registers the sales instruments.
func NewSalesMetrics() (*SalesMetrics, error) {
	meter := otel.Meter("github.com/Additional-Code/meridian/observability")

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders committed successfully"))
	if err != nil {
		return nil, err
	}
	ordersUpdated, err := meter.Int64Counter("orders_updated_total",
		metric.WithDescription("Order line sets reconciled"))
	if err != nil {
		return nil, err
	}
	ordersDeleted, err := meter.Int64Counter("orders_deleted_total",
		metric.WithDescription("Orders hard-deleted or passivated"))
	if err != nil {
		return nil, err
	}
	stockReceived, err := meter.Int64Counter("stock_received_total",
		metric.WithDescription("Units booked through stock-in"))
	if err != nil {
		return nil, err
	}
	stockRefusals, err := meter.Int64Counter("stock_refusals_total",
		metric.WithDescription("Mutations refused for insufficient stock"))
	if err != nil {
		return nil, err
	}

	return &SalesMetrics{
		ordersCreated: ordersCreated,
		ordersUpdated: ordersUpdated,
		ordersDeleted: ordersDeleted,
		stockReceived: stockReceived,
		stockRefusals: stockRefusals,
	}, nil
}

// OrderCreated records one committed order.
func (m *SalesMetrics) OrderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

// OrderUpdated records one reconciled order.
func (m *SalesMetrics) OrderUpdated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersUpdated.Add(ctx, 1)
}

// OrderDeleted records one deleted or passivated order.
func (m *SalesMetrics) OrderDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersDeleted.Add(ctx, 1)
}

// StockReceived records booked units.
func (m *SalesMetrics) StockReceived(ctx context.Context, quantity int64) {
	if m == nil {
		return
	}
	m.stockReceived.Add(ctx, quantity)
}

// StockRefused records one refused mutation.
func (m *SalesMetrics) StockRefused(ctx context.Context) {
	if m == nil {
		return
	}
	m.stockRefusals.Add(ctx, 1)
}
