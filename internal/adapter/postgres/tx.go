package postgres

import (
	"context"

	"github.com/gridcab/dispatch/pkg/trm"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the slice of pgx shared by pgxpool.Pool and pgx.Tx that the
// repositories run their statements on.
type querier interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// txOrPool возвращает транзакцию из контекста, если trm её открыл,
// иначе сам пул.
func txOrPool(ctx context.Context, db *pgxpool.Pool) querier {
	tx, ok := ctx.Value(trm.TxKey).(pgx.Tx)
	if !ok {
		return db
	}
	return tx
}
