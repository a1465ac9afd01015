package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsUniqueViolation проверяет, является ли переданная ошибка нарушением
// уникального ограничения PostgreSQL (SQLSTATE 23505). Работает и с
// обёрнутыми ошибками.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}

	return false
}
