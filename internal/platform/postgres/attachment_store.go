package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tasktrack/attachments/internal/domain"
	"github.com/tasktrack/attachments/internal/platform/logger"
	"github.com/tasktrack/attachments/internal/store"
)

const attachmentColumns = `id, task_id, file_name, storage_key, file_size, mime_type,
		uploaded_by, uploaded_at, original_task_id, is_inherited`

// Advisory lock keys are namespaced so a task id can never collide with a storage key.
const (
	lockTaskQuery       = `SELECT pg_advisory_xact_lock(hashtextextended('task:' || $1::text, 0))`
	lockStorageKeyQuery = `SELECT pg_advisory_xact_lock(hashtextextended('key:' || $1, 0))`
)

// PostgresAttachmentStore implements the store.AttachmentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAttachmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttachmentStore creates a new PostgreSQL implementation of the AttachmentStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresAttachmentStore(db store.DBTX, logger *slog.Logger) *PostgresAttachmentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAttachmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "attachment_store")),
	}
}

// Ensure PostgresAttachmentStore implements store.AttachmentStore interface
var _ store.AttachmentStore = (*PostgresAttachmentStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (*domain.Attachment, error) {
	var (
		a      domain.Attachment
		origin sql.NullInt64
	)

	err := row.Scan(
		&a.ID,
		&a.TaskID,
		&a.FileName,
		&a.StorageKey,
		&a.FileSize,
		&a.MimeType,
		&a.UploadedBy,
		&a.UploadedAt,
		&origin,
		&a.IsInherited,
	)
	if err != nil {
		return nil, err
	}

	if origin.Valid {
		v := origin.Int64
		a.OriginalTaskID = &v
	}
	a.UploadedAt = a.UploadedAt.UTC()

	return &a, nil
}

func nullableTaskID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create implements store.AttachmentStore.Create
func (s *PostgresAttachmentStore) Create(
	ctx context.Context,
	attachment *domain.Attachment,
) (*domain.Attachment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attachment.Validate(); err != nil {
		log.Warn("attachment validation failed during create",
			slog.String("error", err.Error()),
			slog.String("attachment_id", attachment.ID.String()))
		return nil, err
	}

	query := `
		INSERT INTO task_attachments (` + attachmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + attachmentColumns

	created, err := scanAttachment(s.db.QueryRowContext(
		ctx,
		query,
		attachment.ID,
		attachment.TaskID,
		attachment.FileName,
		attachment.StorageKey,
		attachment.FileSize,
		attachment.MimeType,
		attachment.UploadedBy,
		attachment.UploadedAt,
		nullableTaskID(attachment.OriginalTaskID),
		attachment.IsInherited,
	))
	if err != nil {
		log.Error("failed to create attachment",
			slog.String("error", err.Error()),
			slog.String("attachment_id", attachment.ID.String()),
			slog.Int64("task_id", attachment.TaskID))
		return nil, store.NewStoreError("attachment", "create", "insert failed", MapError(err))
	}

	log.Debug("attachment created",
		slog.String("attachment_id", created.ID.String()),
		slog.Int64("task_id", created.TaskID),
		slog.Bool("is_inherited", created.IsInherited))
	return created, nil
}

// FindByID implements store.AttachmentStore.FindByID
// Returns store.ErrAttachmentNotFound if the attachment does not exist.
func (s *PostgresAttachmentStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + attachmentColumns + ` FROM task_attachments WHERE id = $1`

	attachment, err := scanAttachment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("attachment not found", slog.String("attachment_id", id.String()))
			return nil, store.ErrAttachmentNotFound
		}
		log.Error("failed to get attachment by ID",
			slog.String("error", err.Error()),
			slog.String("attachment_id", id.String()))
		return nil, store.NewStoreError("attachment", "find", "query failed", MapError(err))
	}

	return attachment, nil
}

// FindByTaskID implements store.AttachmentStore.FindByTaskID
// Records come back newest upload first.
func (s *PostgresAttachmentStore) FindByTaskID(ctx context.Context, taskID int64) ([]*domain.Attachment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + attachmentColumns + `
		FROM task_attachments
		WHERE task_id = $1
		ORDER BY uploaded_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list attachments",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, store.NewStoreError("attachment", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	attachments := make([]*domain.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, store.NewStoreError("attachment", "list", "scan failed", err)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("attachment", "list", "iteration failed", MapError(err))
	}

	return attachments, nil
}

// DeleteByID implements store.AttachmentStore.DeleteByID
// Returns store.ErrAttachmentNotFound if the attachment does not exist.
func (s *PostgresAttachmentStore) DeleteByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM task_attachments WHERE id = $1 RETURNING ` + attachmentColumns

	deleted, err := scanAttachment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("attachment to delete not found", slog.String("attachment_id", id.String()))
			return nil, store.ErrAttachmentNotFound
		}
		log.Error("failed to delete attachment",
			slog.String("error", err.Error()),
			slog.String("attachment_id", id.String()))
		return nil, store.NewStoreError("attachment", "delete", "delete failed", MapError(err))
	}

	log.Debug("attachment deleted",
		slog.String("attachment_id", id.String()),
		slog.Int64("task_id", deleted.TaskID))
	return deleted, nil
}

// TotalSizeForTask implements store.AttachmentStore.TotalSizeForTask
func (s *PostgresAttachmentStore) TotalSizeForTask(ctx context.Context, taskID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(file_size), 0)::bigint FROM task_attachments WHERE task_id = $1`

	var total int64
	if err := s.db.QueryRowContext(ctx, query, taskID).Scan(&total); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to sum attachment sizes",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return 0, store.NewStoreError("attachment", "total_size", "query failed", MapError(err))
	}

	return total, nil
}

// CountReferences implements store.AttachmentStore.CountReferences
func (s *PostgresAttachmentStore) CountReferences(
	ctx context.Context,
	storageKey string,
	excludeID uuid.UUID,
) (int, error) {
	// uuid.Nil never matches a stored id, so it counts every reference
	query := `SELECT COUNT(*) FROM task_attachments WHERE storage_key = $1 AND id <> $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, storageKey, excludeID).Scan(&count); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count storage key references",
			slog.String("error", err.Error()),
			slog.String("storage_key", storageKey))
		return 0, store.NewStoreError("attachment", "count_references", "query failed", MapError(err))
	}

	return count, nil
}

// LockTask implements store.AttachmentStore.LockTask
func (s *PostgresAttachmentStore) LockTask(ctx context.Context, taskID int64) error {
	if _, err := s.db.ExecContext(ctx, lockTaskQuery, taskID); err != nil {
		return store.NewStoreError("attachment", "lock_task", fmt.Sprintf("task %d", taskID), MapError(err))
	}
	return nil
}

// LockStorageKey implements store.AttachmentStore.LockStorageKey
func (s *PostgresAttachmentStore) LockStorageKey(ctx context.Context, storageKey string) error {
	if _, err := s.db.ExecContext(ctx, lockStorageKeyQuery, storageKey); err != nil {
		return store.NewStoreError("attachment", "lock_storage_key", "advisory lock failed", MapError(err))
	}
	return nil
}

// WithTx implements store.AttachmentStore.WithTx
// It returns a new AttachmentStore instance that uses the provided transaction.
func (s *PostgresAttachmentStore) WithTx(tx *sql.Tx) store.AttachmentStore {
	return &PostgresAttachmentStore{
		db:     tx,
		logger: s.logger,
	}
}
