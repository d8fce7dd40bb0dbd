package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/entity"
)

type fakeOrders struct {
	orders []*entity.Order
}

func (f fakeOrders) ActiveInWindow(_ context.Context, start, end time.Time) ([]*entity.Order, error) {
	var out []*entity.Order
	for _, order := range f.orders {
		if order.CreatedAt.Before(start) || order.CreatedAt.After(end) {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

type fakeRates struct {
	snapshot *entity.ExchangeRateSnapshot
	appended []*entity.ExchangeRateSnapshot
}

func (f *fakeRates) Latest(_ context.Context) (*entity.ExchangeRateSnapshot, error) {
	return f.snapshot, nil
}

func (f *fakeRates) Append(_ context.Context, snapshot *entity.ExchangeRateSnapshot) error {
	f.appended = append(f.appended, snapshot)
	f.snapshot = snapshot
	return nil
}

func testService(orders []*entity.Order, snapshot *entity.ExchangeRateSnapshot, now time.Time) *Service {
	rates := &fakeRates{snapshot: snapshot}
	return &Service{
		orders:      fakeOrders{orders: orders},
		rates:       rates,
		sink:        rates,
		rollingDays: 30,
		logger:      zap.NewNop(),
		now:         func() time.Time { return now },
	}
}

func soldLine(productID, qty int64, unit, discount, cost string) *entity.OrderLine {
	l := &entity.OrderLine{
		ProductID:     productID,
		Quantity:      qty,
		UnitPrice:     decimal.RequireFromString(unit),
		Discount:      decimal.RequireFromString(discount),
		PurchasePrice: decimal.RequireFromString(cost),
	}
	l.RecomputeTotal()
	return l
}

func orderAt(at time.Time, currency entity.Currency, companyID int64, lines ...*entity.OrderLine) *entity.Order {
	order := &entity.Order{
		Currency:  currency,
		Active:    true,
		CreatedAt: at,
		Customer:  &entity.Customer{CompanyID: companyID},
		Lines:     lines,
	}
	order.RecomputeTotal()
	return order
}

func TestResolveWindowsCalendarYear(t *testing.T) {
	year := 2025
	current, previous, err := resolveWindows(&year, time.Now(), 30)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), current.Start)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), current.End)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), previous.Start)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), previous.End)
}

func TestResolveWindowsRolling(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	current, previous, err := resolveWindows(nil, now, 30)
	require.NoError(t, err)

	assert.Equal(t, now, current.End)
	assert.Equal(t, now.AddDate(0, 0, -30), current.Start)
	assert.Equal(t, current.Start, previous.End)
	assert.Equal(t, now.AddDate(0, 0, -60), previous.Start)
}

func TestResolveWindowsRejectsInvalidYear(t *testing.T) {
	year := 0
	_, _, err := resolveWindows(&year, time.Now(), 30)
	assert.Error(t, err)
}

func TestPercentChange(t *testing.T) {
	assert.True(t, percentChange(decimal.Zero, decimal.Zero).IsZero())
	assert.True(t, percentChange(decimal.NewFromInt(50), decimal.Zero).Equal(decimal.NewFromInt(100)))
	assert.True(t, percentChange(decimal.NewFromInt(150), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(50)))
	assert.True(t, percentChange(decimal.NewFromInt(50), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(-50)))
}

func TestSalesSumsDiscountedLineTotals(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -5), entity.CurrencyTRY, 1,
			soldLine(7, 2, "100", "10", "40"), // 180
			soldLine(8, 1, "50", "0", "20"),   // 50
		),
	}
	svc := testService(orders, nil, now)

	result, err := svc.Sales(context.Background(), Query{})
	require.NoError(t, err)
	assert.True(t, result.Current.Equal(decimal.NewFromInt(230)), "got %s", result.Current)
	assert.True(t, result.Prior.IsZero())
	assert.True(t, result.ChangePct.Equal(decimal.NewFromInt(100)))
}

func TestMetricsApplyLatestRateMultiplier(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -2), entity.CurrencyUSD, 1,
			soldLine(7, 1, "100", "0", "40"),
		),
	}
	snapshot := &entity.ExchangeRateSnapshot{DollarRate: decimal.NewFromInt(40)}
	svc := testService(orders, snapshot, now)

	sales, err := svc.Sales(context.Background(), Query{CostInOrderCurrency: true})
	require.NoError(t, err)
	assert.True(t, sales.Current.Equal(decimal.NewFromInt(4000)), "got %s", sales.Current)

	expense, err := svc.Expense(context.Background(), Query{CostInOrderCurrency: true})
	require.NoError(t, err)
	assert.True(t, expense.Current.Equal(decimal.NewFromInt(1600)), "got %s", expense.Current)

	profit, err := svc.Profit(context.Background(), Query{CostInOrderCurrency: true})
	require.NoError(t, err)
	assert.True(t, profit.Current.Equal(decimal.NewFromInt(2400)), "got %s", profit.Current)
}

func TestMetricsMissingSnapshotDefaultsToFaceValue(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -2), entity.CurrencyEUR, 1,
			soldLine(7, 1, "100", "0", "40"),
		),
	}
	svc := testService(orders, nil, now)

	result, err := svc.Sales(context.Background(), Query{})
	require.NoError(t, err)
	assert.True(t, result.Current.Equal(decimal.NewFromInt(100)))
}

func TestMetricsExcludeLossMakingLines(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -2), entity.CurrencyTRY, 1,
			soldLine(7, 1, "100", "0", "40"), // profitable, counts
			soldLine(8, 1, "10", "0", "10"),  // break-even, excluded
			soldLine(9, 1, "10", "0", "25"),  // loss, excluded
		),
	}
	svc := testService(orders, nil, now)

	sales, err := svc.Sales(context.Background(), Query{})
	require.NoError(t, err)
	assert.True(t, sales.Current.Equal(decimal.NewFromInt(100)), "got %s", sales.Current)

	profit, err := svc.Profit(context.Background(), Query{})
	require.NoError(t, err)
	assert.True(t, profit.Current.Equal(decimal.NewFromInt(60)), "got %s", profit.Current)
}

func TestMetricsSkipSoftDeletedLines(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	deleted := soldLine(8, 1, "100", "0", "10")
	deleted.DeletedAt = now
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -2), entity.CurrencyTRY, 1,
			soldLine(7, 1, "100", "0", "40"),
			deleted,
		),
	}
	svc := testService(orders, nil, now)

	result, err := svc.Sales(context.Background(), Query{})
	require.NoError(t, err)
	assert.True(t, result.Current.Equal(decimal.NewFromInt(100)))
}

func TestMetricsCompanyFilter(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -2), entity.CurrencyTRY, 1, soldLine(7, 1, "100", "0", "40")),
		orderAt(now.AddDate(0, 0, -3), entity.CurrencyTRY, 2, soldLine(8, 1, "200", "0", "40")),
	}
	svc := testService(orders, nil, now)

	companyID := int64(2)
	result, err := svc.Sales(context.Background(), Query{CompanyID: &companyID})
	require.NoError(t, err)
	assert.True(t, result.Current.Equal(decimal.NewFromInt(200)), "got %s", result.Current)
}

func TestMetricsPriorWindowComparison(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	orders := []*entity.Order{
		orderAt(now.AddDate(0, 0, -5), entity.CurrencyTRY, 1, soldLine(7, 1, "300", "0", "40")),
		orderAt(now.AddDate(0, 0, -45), entity.CurrencyTRY, 1, soldLine(7, 1, "200", "0", "40")),
	}
	svc := testService(orders, nil, now)

	result, err := svc.Sales(context.Background(), Query{})
	require.NoError(t, err)
	assert.True(t, result.Current.Equal(decimal.NewFromInt(300)))
	assert.True(t, result.Prior.Equal(decimal.NewFromInt(200)))
	assert.True(t, result.ChangePct.Equal(decimal.NewFromInt(50)), "got %s", result.ChangePct)
}

func TestRecordRates(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	svc := testService(nil, nil, now)

	snapshot, err := svc.RecordRates(context.Background(), decimal.RequireFromString("41.2"), decimal.RequireFromString("48.05"))
	require.NoError(t, err)
	assert.Equal(t, now, snapshot.CreatedAt)

	_, err = svc.RecordRates(context.Background(), decimal.NewFromInt(-1), decimal.Zero)
	assert.Error(t, err)
}
