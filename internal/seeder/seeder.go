package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/meridian/internal/database"
	"github.com/Additional-Code/meridian/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// All seeds the catalog, identities, opening stock and an initial
// exchange-rate snapshot.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Catalog(ctx); err != nil {
		return err
	}
	if err := s.Identities(ctx); err != nil {
		return err
	}
	if err := s.Stock(ctx); err != nil {
		return err
	}
	return s.ExchangeRates(ctx)
}

// Catalog seeds companies, products, warehouses and customers if missing.
func (s *Seeder) Catalog(ctx context.Context) error {
	now := time.Now().UTC()

	companies := []entity.Company{
		{Name: "Meridian Trading", Active: true, CreatedAt: now},
		{Name: "Bosphorus Supplies", Active: true, CreatedAt: now},
	}
	for i := range companies {
		_, err := s.db.NewInsert().Model(&companies[i]).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	products := []entity.Product{
		{CompanyID: 1, Name: "Steel Bolt M8", PurchasePrice: decimal.RequireFromString("2.40"), Active: true, CreatedAt: now},
		{CompanyID: 1, Name: "Copper Wire 10m", PurchasePrice: decimal.RequireFromString("18.75"), Active: true, CreatedAt: now},
		{CompanyID: 2, Name: "Ceramic Tile 30x30", PurchasePrice: decimal.RequireFromString("6.10"), Active: true, CreatedAt: now},
	}
	for i := range products {
		_, err := s.db.NewInsert().Model(&products[i]).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	warehouses := []entity.Warehouse{
		{Name: "Central Depot", CreatedAt: now},
		{Name: "Harbor Annex", CreatedAt: now},
	}
	for i := range warehouses {
		_, err := s.db.NewInsert().Model(&warehouses[i]).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	customers := []entity.Customer{
		{CompanyID: 1, Name: "Kaya Construction", CreatedAt: now},
		{CompanyID: 2, Name: "Demir Hardware", CreatedAt: now},
	}
	for i := range customers {
		_, err := s.db.NewInsert().Model(&customers[i]).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded catalog",
			zap.Int("companies", len(companies)),
			zap.Int("products", len(products)),
			zap.Int("warehouses", len(warehouses)),
			zap.Int("customers", len(customers)),
		)
	}
	return nil
}

// Identities seeds the admin and employee accounts orders are attributed to.
func (s *Seeder) Identities(ctx context.Context) error {
	admins := []entity.Admin{
		{ExternalID: "adm-0001", Name: "Root Admin"},
	}
	for i := range admins {
		_, err := s.db.NewInsert().Model(&admins[i]).
			On("CONFLICT (external_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	employees := []entity.Employee{
		{ExternalID: "emp-0001", Name: "Sales Desk"},
		{ExternalID: "emp-0002", Name: "Field Rep"},
	}
	for i := range employees {
		_, err := s.db.NewInsert().Model(&employees[i]).
			On("CONFLICT (external_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded identities",
			zap.Int("admins", len(admins)),
			zap.Int("employees", len(employees)),
		)
	}
	return nil
}

// Stock seeds opening stock levels for every seeded product.
func (s *Seeder) Stock(ctx context.Context) error {
	now := time.Now().UTC()
	entries := []entity.StockEntry{
		{ProductID: 1, WarehouseID: 1, Quantity: 500, CreatedAt: now},
		{ProductID: 2, WarehouseID: 1, Quantity: 120, CreatedAt: now},
		{ProductID: 3, WarehouseID: 2, Quantity: 80, CreatedAt: now},
	}
	for i := range entries {
		_, err := s.db.NewInsert().Model(&entries[i]).
			On("CONFLICT (product_id, warehouse_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded stock", zap.Int("entries", len(entries)))
	}
	return nil
}

// ExchangeRates appends an initial snapshot so reporting has multipliers
// before the first real rate arrives.
func (s *Seeder) ExchangeRates(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.ExchangeRateSnapshot)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	snapshot := entity.ExchangeRateSnapshot{
		DollarRate: decimal.RequireFromString("41.20"),
		EuroRate:   decimal.RequireFromString("48.05"),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&snapshot).Exec(ctx); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded exchange rates")
	}
	return nil
}
