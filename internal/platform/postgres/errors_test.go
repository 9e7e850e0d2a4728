package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/tasktrack/attachments/internal/platform/postgres"
	"github.com/tasktrack/attachments/internal/store"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "task_attachments",
		ColumnName:     "file_size",
		ConstraintName: "task_attachments_origin_check",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		wantIs  error
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "unique violation", err: newPgError("23505"), wantIs: store.ErrDuplicate},
		{name: "check violation", err: newPgError("23514"), wantIs: store.ErrInvalidEntity},
		{name: "not null violation", err: newPgError("23502"), wantIs: store.ErrInvalidEntity},
		{name: "query canceled", err: newPgError("57014"), wantIs: context.DeadlineExceeded},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", newPgError("23505")), wantIs: store.ErrDuplicate},
		{name: "unmapped error passes through", err: plain, wantIs: plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := postgres.MapError(tt.err)
			if tt.wantNil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.wantIs)
		})
	}
}

func TestMapError_IncludesConstraintName(t *testing.T) {
	t.Parallel()

	err := postgres.MapError(newPgError("23514"))
	assert.Contains(t, err.Error(), "task_attachments_origin_check")
}
