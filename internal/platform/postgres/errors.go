package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tasktrack/attachments/internal/store"
)

// SQLSTATE codes the attachment schema can raise.
const (
	uniqueViolationCode  = "23505"
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
	// statement_timeout or a canceled context aborting a running query
	queryCanceledCode = "57014"
)

// MapError translates a driver error into the store sentinels. The driver
// error stays in the chain for logging; unrecognized errors are returned
// unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %s: %v", store.ErrDuplicate, pgErr.ConstraintName, err)
	case checkViolationCode:
		return fmt.Errorf("%w: check %s: %v", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case notNullViolationCode:
		return fmt.Errorf("%w: %s is required: %v", store.ErrInvalidEntity, pgErr.ColumnName, err)
	case queryCanceledCode:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
