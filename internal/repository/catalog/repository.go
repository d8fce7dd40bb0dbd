package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/meridian/internal/database"
	"github.com/Additional-Code/meridian/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/meridian/repository/catalog")

// Sentinel errors for missing collaborator records.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrWarehouseNotFound = errors.New("warehouse not found")
	ErrActorNotFound     = errors.New("actor not found")
	ErrCustomerNotFound  = errors.New("customer not found")
)

// Repository provides read access to the product catalog, warehouse
// directory and actor identities consumed by the order core.
type Repository struct {
	reader bun.IDB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// Product fetches a product by primary key.
func (r *Repository) Product(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Product", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product := new(entity.Product)
	err := r.reader.NewSelect().Model(product).
		Relation("Company").
		Where("p.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrProductNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return product, nil
}

// Warehouse fetches a warehouse by primary key.
func (r *Repository) Warehouse(ctx context.Context, id int64) (*entity.Warehouse, error) {
	warehouse := new(entity.Warehouse)
	err := r.reader.NewSelect().Model(warehouse).
		Where("w.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWarehouseNotFound
	}
	if err != nil {
		return nil, err
	}
	return warehouse, nil
}

// Customer fetches a buyer by primary key.
func (r *Repository) Customer(ctx context.Context, id int64) (*entity.Customer, error) {
	customer := new(entity.Customer)
	err := r.reader.NewSelect().Model(customer).
		Where("cu.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// ResolveActor attributes an external identity reference to exactly one of
// the two actor kinds. The admin lookup wins when both would match; a miss
// on both is ErrActorNotFound.
func (r *Repository) ResolveActor(ctx context.Context, externalID string) (entity.Actor, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ResolveActor")
	defer span.End()

	admin := new(entity.Admin)
	err := r.reader.NewSelect().Model(admin).
		Where("adm.external_id = ?", externalID).
		Scan(ctx)
	if err == nil {
		return entity.Actor{Kind: entity.ActorAdmin, ID: admin.ID}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		return entity.Actor{}, err
	}

	employee := new(entity.Employee)
	err = r.reader.NewSelect().Model(employee).
		Where("emp.external_id = ?", externalID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "actor not found")
		return entity.Actor{}, ErrActorNotFound
	}
	if err != nil {
		span.RecordError(err)
		return entity.Actor{}, err
	}
	return entity.Actor{Kind: entity.ActorEmployee, ID: employee.ID}, nil
}
