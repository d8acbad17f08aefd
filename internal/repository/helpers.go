package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// isUniqueViolation reports a duplicate (event_id, photo_id). The message
// check covers drivers and mocks that do not return a *pgconn.PgError.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, uniqueViolation) || strings.Contains(msg, "duplicate key")
}
