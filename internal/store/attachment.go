package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tasktrack/attachments/internal/domain"
)

// AttachmentStore defines the interface for attachment metadata persistence.
// Records are immutable: there is no update operation.
type AttachmentStore interface {
	// Create inserts a new attachment record and returns it as stored.
	// Returns validation errors from the domain Attachment if data is invalid.
	// Returns ErrDuplicate if a record with the same ID already exists.
	Create(ctx context.Context, attachment *domain.Attachment) (*domain.Attachment, error)

	// FindByID retrieves an attachment by its unique ID.
	// Returns ErrAttachmentNotFound if the attachment does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)

	// FindByTaskID retrieves all attachments of a task, newest upload first.
	// Returns an empty slice if the task has no attachments.
	FindByTaskID(ctx context.Context, taskID int64) ([]*domain.Attachment, error)

	// DeleteByID removes an attachment and returns the deleted record so the
	// caller can act on its storage key.
	// Returns ErrAttachmentNotFound if the attachment does not exist.
	DeleteByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)

	// TotalSizeForTask returns the sum of file sizes of all attachments of a task.
	TotalSizeForTask(ctx context.Context, taskID int64) (int64, error)

	// CountReferences counts the records pointing at storageKey, ignoring the
	// record with excludeID. Pass uuid.Nil to count every reference.
	CountReferences(ctx context.Context, storageKey string, excludeID uuid.UUID) (int, error)

	// LockTask takes a lock scoped to a task's attachment set that is held
	// until the surrounding transaction ends. It serializes quota checks
	// against concurrent inserts for the same task.
	//
	// IMPORTANT: the lock is only meaningful on a transactional store
	// obtained through WithTx.
	LockTask(ctx context.Context, taskID int64) error

	// LockStorageKey takes a transaction-scoped lock on a storage key. It
	// serializes reference counting against concurrent deletes and copies
	// of records sharing the key.
	//
	// IMPORTANT: the lock is only meaningful on a transactional store
	// obtained through WithTx.
	LockStorageKey(ctx context.Context, storageKey string) error

	// WithTx returns a new AttachmentStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	//
	// Example usage:
	//   err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
	//       txStore := attachmentStore.WithTx(tx)
	//       if err := txStore.LockTask(ctx, taskID); err != nil {
	//           return err
	//       }
	//       _, err := txStore.Create(ctx, attachment)
	//       return err
	//   })
	WithTx(tx *sql.Tx) AttachmentStore
}
