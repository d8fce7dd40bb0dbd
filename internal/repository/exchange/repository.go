package exchange

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/meridian/internal/database"
	"github.com/Additional-Code/meridian/internal/entity"
)

// Repository stores the append-only exchange-rate snapshots.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Latest returns the newest snapshot, or nil when none has been recorded.
// Metrics and costing degrade to face-value multipliers in the nil case.
func (r *Repository) Latest(ctx context.Context) (*entity.ExchangeRateSnapshot, error) {
	snapshot := new(entity.ExchangeRateSnapshot)
	err := r.reader.NewSelect().Model(snapshot).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Append records a new snapshot. Existing snapshots are never modified.
func (r *Repository) Append(ctx context.Context, snapshot *entity.ExchangeRateSnapshot) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	_, err := r.writer.NewInsert().Model(snapshot).Exec(ctx)
	return err
}
