package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/menulens/menulens-api/internal/store"
)

// PostgreSQL error codes.
const (
	pgUniqueViolationCode     = "23505"
	pgForeignKeyViolationCode = "23503"
)

// mapError translates PostgreSQL constraint violations into store sentinel
// errors; other errors pass through unchanged.
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolationCode:
			return fmt.Errorf("%w: %s (%s)", store.ErrDuplicate, entity, pgErr.ConstraintName)
		case pgForeignKeyViolationCode:
			return fmt.Errorf("%w: %s references a missing row (%s)",
				store.ErrInvalidEntity, entity, pgErr.ConstraintName)
		}
	}

	return err
}
