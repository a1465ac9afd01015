package postgres

import (
	"context"
	"fmt"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DriverRepo mirrors the live presence index into the drivers table.
// Матчинг по зеркалу не ходит, строки нужны для истории и ops-запросов.
type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

// Upsert writes the driver's current status and cell, creating the row on
// first contact.
func (r *DriverRepo) Upsert(ctx context.Context, driver models.Driver) error {
	q := txOrPool(ctx, r.db)

	query := `
		INSERT INTO drivers (id, status, x, y, last_online)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    x = EXCLUDED.x,
		    y = EXCLUDED.y,
		    last_online = EXCLUDED.last_online;`

	_, err := q.Exec(ctx, query, driver.ID, driver.Status, driver.Cell.X, driver.Cell.Y, driver.LastOnline)
	if err != nil {
		return fmt.Errorf("driver repo: Upsert: %w", err)
	}

	return nil
}

// SetStatus flips the mirrored status. A driver without a row yet is fine,
// there is nothing to mirror.
func (r *DriverRepo) SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error {
	q := txOrPool(ctx, r.db)

	query := `
		UPDATE drivers
		SET status = $2
		WHERE id = $1;`

	if _, err := q.Exec(ctx, query, driverID, status); err != nil {
		return fmt.Errorf("driver repo: SetStatus: %w", err)
	}

	return nil
}
