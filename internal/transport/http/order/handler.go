package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/meridian/internal/dto"
	"github.com/Additional-Code/meridian/internal/entity"
	"github.com/Additional-Code/meridian/internal/presentation/http/response"
	service "github.com/Additional-Code/meridian/internal/service/order"
	"github.com/Additional-Code/meridian/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/meridian/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("/:id", h.getByID)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.OrderFromEntity(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.ActorID == "" {
		return b.WithError(errorbank.BadRequest("actor_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(
		attribute.Int64("order.customer_id", payload.CustomerID),
		attribute.String("order.currency", payload.Currency),
		attribute.Int("order.lines", len(payload.Lines)),
	)
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateOrderInput{
		CustomerID:      payload.CustomerID,
		ActorExternalID: payload.ActorID,
		Currency:        entity.Currency(payload.Currency),
		Lines:           toLineInputs(payload.Lines),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.OrderFromEntity(order)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.UpdateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Int("order.lines", len(payload.Lines)),
	))
	defer span.End()

	order, err := h.svc.Update(ctx, service.UpdateOrderInput{
		OrderID: id,
		Lines:   toLineInputs(payload.Lines),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.OrderFromEntity(order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusNoContent).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func toLineInputs(lines []dto.OrderLineRequest) []service.LineInput {
	out := make([]service.LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, service.LineInput{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
		})
	}
	return out
}
