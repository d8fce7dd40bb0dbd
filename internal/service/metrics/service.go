package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/config"
	"github.com/Additional-Code/meridian/internal/entity"
	exchangerepo "github.com/Additional-Code/meridian/internal/repository/exchange"
	orderrepo "github.com/Additional-Code/meridian/internal/repository/order"
	"github.com/Additional-Code/meridian/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/meridian/service/metrics")

// OrderSource supplies the committed orders a window aggregates over.
type OrderSource interface {
	ActiveInWindow(ctx context.Context, start, end time.Time) ([]*entity.Order, error)
}

// RateSource supplies the latest exchange-rate snapshot, nil when none exists.
type RateSource interface {
	Latest(ctx context.Context) (*entity.ExchangeRateSnapshot, error)
}

// RateSink appends exchange-rate snapshots to the append-only history.
type RateSink interface {
	Append(ctx context.Context, snapshot *entity.ExchangeRateSnapshot) error
}

// Query selects the reporting window and optional filters.
type Query struct {
	// Year switches from the trailing rolling window to the named calendar
	// year; the prior window is then the preceding year.
	Year *int
	// CompanyID filters orders to buyers belonging to the company.
	CompanyID *int64
	// CostInOrderCurrency marks purchase-price snapshots as denominated in
	// the order's currency, so cost values are normalized like sale values.
	CostInOrderCurrency bool
}

// Window is a closed reporting interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Result is the ephemeral outcome of one metric computation. It is
// recomputed on every query and never persisted or cached.
type Result struct {
	Metric    string          `json:"metric"`
	Window    Window          `json:"window"`
	Previous  Window          `json:"previous"`
	CompanyID *int64          `json:"company_id,omitempty"`
	Current   decimal.Decimal `json:"current"`
	Prior     decimal.Decimal `json:"prior"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// Service computes sales, expense and profit aggregates over a reporting
// window and its immediately preceding window, normalized through the
// latest exchange-rate snapshot. Read-only.
type Service struct {
	orders      OrderSource
	rates       RateSource
	sink        RateSink
	rollingDays int
	logger      *zap.Logger
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders *orderrepo.Repository
	Rates  *exchangerepo.Repository
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:      p.Orders,
		rates:       p.Rates,
		sink:        p.Rates,
		rollingDays: p.Config.Reporting.RollingWindowDays,
		logger:      p.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RecordRates appends a new exchange-rate snapshot. Snapshots are never
// edited; subsequent metric queries pick up the newest one.
func (s *Service) RecordRates(ctx context.Context, dollarRate, euroRate decimal.Decimal) (*entity.ExchangeRateSnapshot, error) {
	ctx, span := serviceTracer.Start(ctx, "FinancialMetrics.recordRates")
	defer span.End()

	if dollarRate.IsNegative() || euroRate.IsNegative() {
		return nil, errorbank.BadRequest("exchange rates must not be negative")
	}

	snapshot := &entity.ExchangeRateSnapshot{
		DollarRate: dollarRate,
		EuroRate:   euroRate,
		CreatedAt:  s.now(),
	}
	if err := s.sink.Append(ctx, snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, errorbank.Internal("failed to record exchange rates", errorbank.WithCause(err))
	}

	if s.logger != nil {
		s.logger.Info("exchange rates recorded",
			zap.String("dollar", dollarRate.String()),
			zap.String("euro", euroRate.String()),
		)
	}
	return snapshot, nil
}

// lineValue computes a line's contribution to a metric, already normalized
// into the reporting currency.
type lineValue func(line *entity.OrderLine, saleMult, costMult decimal.Decimal) decimal.Decimal

// Sales sums the discounted sale value of every qualifying line.
func (s *Service) Sales(ctx context.Context, q Query) (Result, error) {
	return s.metric(ctx, "sales", q, func(line *entity.OrderLine, saleMult, _ decimal.Decimal) decimal.Decimal {
		return saleValue(line).Mul(saleMult)
	})
}

// Expense sums the cost of goods (purchase price x quantity) of every
// qualifying line.
func (s *Service) Expense(ctx context.Context, q Query) (Result, error) {
	return s.metric(ctx, "expense", q, func(line *entity.OrderLine, _, costMult decimal.Decimal) decimal.Decimal {
		return line.Cost().Mul(costMult)
	})
}

// Profit sums discounted sale value minus cost per line. The discount is
// applied before currency conversion, so this is not simply sales minus
// expense.
func (s *Service) Profit(ctx context.Context, q Query) (Result, error) {
	return s.metric(ctx, "profit", q, func(line *entity.OrderLine, saleMult, costMult decimal.Decimal) decimal.Decimal {
		return saleValue(line).Mul(saleMult).Sub(line.Cost().Mul(costMult))
	})
}

func (s *Service) metric(ctx context.Context, name string, q Query, value lineValue) (Result, error) {
	ctx, span := serviceTracer.Start(ctx, "FinancialMetrics."+name)
	defer span.End()

	current, previous, err := resolveWindows(q.Year, s.now(), s.rollingDays)
	if err != nil {
		return Result{}, err
	}

	snapshot, err := s.rates.Latest(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate lookup failed")
		return Result{}, errorbank.Internal("failed to load exchange rates", errorbank.WithCause(err))
	}
	if snapshot == nil && s.logger != nil {
		s.logger.Debug("no exchange-rate snapshot; using face-value multipliers")
	}

	currentTotal, err := s.sumWindow(ctx, current, snapshot, q, value)
	if err != nil {
		return Result{}, err
	}
	priorTotal, err := s.sumWindow(ctx, previous, snapshot, q, value)
	if err != nil {
		return Result{}, err
	}

	span.SetAttributes(attribute.String("metric.current", currentTotal.String()))
	return Result{
		Metric:    name,
		Window:    current,
		Previous:  previous,
		CompanyID: q.CompanyID,
		Current:   currentTotal,
		Prior:     priorTotal,
		ChangePct: percentChange(currentTotal, priorTotal),
	}, nil
}

func (s *Service) sumWindow(ctx context.Context, w Window, snapshot *entity.ExchangeRateSnapshot, q Query, value lineValue) (decimal.Decimal, error) {
	if w.End.Before(w.Start) {
		return decimal.Zero, errorbank.BadRequest("window end precedes start")
	}

	orders, err := s.orders.ActiveInWindow(ctx, w.Start, w.End)
	if err != nil {
		return decimal.Zero, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}

	one := decimal.NewFromInt(1)
	total := decimal.Zero
	for _, order := range orders {
		if q.CompanyID != nil {
			if order.Customer == nil || order.Customer.CompanyID != *q.CompanyID {
				continue
			}
		}
		saleMult := snapshot.Multiplier(order.Currency)
		costMult := one
		if q.CostInOrderCurrency {
			costMult = saleMult
		}
		for _, line := range order.Lines {
			if !line.DeletedAt.IsZero() {
				continue
			}
			// Loss-making lines do not contribute to income or profit.
			if !saleValue(line).GreaterThan(line.Cost()) {
				continue
			}
			total = total.Add(value(line, saleMult, costMult))
		}
	}
	return total, nil
}

// saleValue is the discounted sale value of a line, falling back to
// quantity x unit price when the stored total is unset.
func saleValue(line *entity.OrderLine) decimal.Decimal {
	if !line.Total.IsZero() {
		return line.Total
	}
	return line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
}

// resolveWindows returns the current window and the equal-length window
// immediately preceding it.
func resolveWindows(year *int, now time.Time, rollingDays int) (Window, Window, error) {
	if year != nil {
		if *year < 1 {
			return Window{}, Window{}, errorbank.BadRequest(fmt.Sprintf("invalid year %d", *year))
		}
		return yearWindow(*year), yearWindow(*year - 1), nil
	}
	if rollingDays <= 0 {
		rollingDays = 30
	}
	span := time.Duration(rollingDays) * 24 * time.Hour
	current := Window{Start: now.Add(-span), End: now}
	previous := Window{Start: current.Start.Add(-span), End: current.Start}
	return current, previous, nil
}

func yearWindow(year int) Window {
	return Window{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC),
	}
}

// percentChange follows the reporting convention: flat when both periods
// are empty, 100% when growth starts from nothing.
func percentChange(current, prior decimal.Decimal) decimal.Decimal {
	switch {
	case current.IsZero() && prior.IsZero():
		return decimal.Zero
	case prior.IsZero():
		return decimal.NewFromInt(100)
	default:
		return current.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100))
	}
}
