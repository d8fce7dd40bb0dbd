package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/config"
	"github.com/Additional-Code/meridian/internal/messaging"
	ordersvc "github.com/Additional-Code/meridian/internal/service/order"
	stocksvc "github.com/Additional-Code/meridian/internal/service/stock"
	"github.com/Additional-Code/meridian/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/meridian/worker/order")

// Module registers sales-event worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewSalesEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// envelope carries just enough to route a sales event to its decoder.
type envelope struct {
	Kind string `json:"kind"`
}

// NewSalesEventHandler sets up a worker handler that consumes order and
// stock events from the sales topic.
func NewSalesEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.sales.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var env envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			logger.Error("failed to decode sales event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(attribute.String("event.kind", env.Kind))

		switch env.Kind {
		case ordersvc.EventOrderCreated, ordersvc.EventOrderUpdated, ordersvc.EventOrderDeleted:
			var event ordersvc.OrderEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "decode error")
				return err
			}
			logger.Info("order event processed",
				zap.String("kind", event.Kind),
				zap.Int64("id", event.ID),
				zap.Int64("customer_id", event.CustomerID),
				zap.String("currency", string(event.Currency)),
				zap.String("total_price", event.TotalPrice.String()),
				zap.Bool("active", event.Active),
			)
		case stocksvc.EventStockReceived:
			var event stocksvc.StockReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "decode error")
				return err
			}
			logger.Info("stock received event processed",
				zap.Int64("product_id", event.ProductID),
				zap.Int64("warehouse_id", event.WarehouseID),
				zap.Int64("received", event.Received),
				zap.Int64("on_hand", event.OnHand),
			)
		default:
			logger.Warn("unknown sales event kind", zap.String("kind", env.Kind))
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
