package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/meridian/internal/dto"
	"github.com/Additional-Code/meridian/internal/presentation/http/response"
	service "github.com/Additional-Code/meridian/internal/service/metrics"
	"github.com/Additional-Code/meridian/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/meridian/transport/http/metrics")

// Handler exposes financial metric endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a metrics Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/metrics")
	g.GET("/sales", h.metric(h.svc.Sales))
	g.GET("/expense", h.metric(h.svc.Expense))
	g.GET("/profit", h.metric(h.svc.Profit))
	g.POST("/rates", h.recordRates)
}

func (h *Handler) recordRates(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		DollarRate decimal.Decimal `json:"dollar_rate"`
		EuroRate   decimal.Decimal `json:"euro_rate"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "metrics.recordRates")
	defer span.End()

	snapshot, err := h.svc.RecordRates(ctx, payload.DollarRate, payload.EuroRate)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.ExchangeRateFromEntity(snapshot)).Build()
}

func (h *Handler) metric(compute func(context.Context, service.Query) (service.Result, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)

		q, err := parseQuery(c)
		if err != nil {
			return b.WithError(err).Build()
		}

		ctx, span := httpTracer.Start(c.Request().Context(), "metrics."+c.Path())
		defer span.End()

		result, err := compute(ctx, q)
		if err != nil {
			return b.WithError(err).Build()
		}

		return b.WithData(result).Build()
	}
}

func parseQuery(c echo.Context) (service.Query, error) {
	// Purchase prices are captured in the order's currency unless the
	// caller says otherwise.
	q := service.Query{CostInOrderCurrency: true}

	if raw := c.QueryParam("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return service.Query{}, errorbank.BadRequest("invalid year", errorbank.WithCause(err))
		}
		q.Year = &year
	}
	if raw := c.QueryParam("company_id"); raw != "" {
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return service.Query{}, errorbank.BadRequest("invalid company_id", errorbank.WithCause(err))
		}
		q.CompanyID = &companyID
	}
	if raw := c.QueryParam("cost_in_order_currency"); raw != "" {
		flag, err := strconv.ParseBool(raw)
		if err != nil {
			return service.Query{}, errorbank.BadRequest("invalid cost_in_order_currency", errorbank.WithCause(err))
		}
		q.CostInOrderCurrency = flag
	}
	return q, nil
}
