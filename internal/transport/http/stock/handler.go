package stock

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/meridian/internal/dto"
	"github.com/Additional-Code/meridian/internal/presentation/http/response"
	service "github.com/Additional-Code/meridian/internal/service/stock"
	"github.com/Additional-Code/meridian/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/meridian/transport/http/stock")

// Handler exposes stock endpoints over HTTP.
type Handler struct {
	ledger *service.Ledger
}

// NewHandler constructs a stock Handler.
func NewHandler(ledger *service.Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/stock")
	g.GET("/:productID/:warehouseID", h.onHand)
	g.POST("/receive", h.receive)
}

func (h *Handler) onHand(c echo.Context) error {
	b := response.New(c)

	productID, err := pathInt64(c, "productID")
	if err != nil {
		return b.WithError(err).Build()
	}
	warehouseID, err := pathInt64(c, "warehouseID")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stock.onHand", trace.WithAttributes(
		attribute.Int64("stock.product_id", productID),
		attribute.Int64("stock.warehouse_id", warehouseID),
	))
	defer span.End()

	entry, err := h.ledger.OnHand(ctx, productID, warehouseID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.StockEntryFromEntity(entry)).Build()
}

func (h *Handler) receive(c echo.Context) error {
	b := response.New(c)

	var payload dto.ReceiveStockRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stock.receive", trace.WithAttributes(
		attribute.Int64("stock.product_id", payload.ProductID),
		attribute.Int64("stock.warehouse_id", payload.WarehouseID),
		attribute.Int64("stock.quantity", payload.Quantity),
	))
	defer span.End()

	entry, err := h.ledger.Receive(ctx, payload.ProductID, payload.WarehouseID, payload.Quantity)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.StockEntryFromEntity(entry)).Build()
}

func pathInt64(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithCause(err))
	}
	return v, nil
}
