package attachment

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tasktrack/attachments/internal/domain"
	"github.com/tasktrack/attachments/internal/store"
)

// Repository is the metadata repository as the service sees it.
// RunInTx hands fn a Repository bound to a single transaction; the advisory
// locks are only meaningful on that transactional repository.
type Repository interface {
	Create(ctx context.Context, attachment *domain.Attachment) (*domain.Attachment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)
	FindByTaskID(ctx context.Context, taskID int64) ([]*domain.Attachment, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)
	TotalSizeForTask(ctx context.Context, taskID int64) (int64, error)
	CountReferences(ctx context.Context, storageKey string, excludeID uuid.UUID) (int, error)
	LockTask(ctx context.Context, taskID int64) error
	LockStorageKey(ctx context.Context, storageKey string) error

	// RunInTx runs fn in a transaction, committing when it returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// BlobStore is the blob store client contract the service consumes.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete may report an absent object with an error matching
	// s3.ErrObjectNotFound; the service treats that as already deleted.
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error)
}

// NewRepositoryAdapter creates a Repository from a store.AttachmentStore and
// the database its transactions are started on.
func NewRepositoryAdapter(attachmentStore store.AttachmentStore, db store.TxBeginner) Repository {
	return &repositoryAdapter{
		AttachmentStore: attachmentStore,
		db:              db,
	}
}

// repositoryAdapter adapts a store.AttachmentStore to the Repository interface
type repositoryAdapter struct {
	store.AttachmentStore
	db   store.TxBeginner
	inTx bool
}

// RunInTx implements Repository.RunInTx. Nested calls join the outer transaction.
func (a *repositoryAdapter) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if a.inTx {
		return fn(ctx, a)
	}
	return store.RunInTransaction(ctx, a.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &repositoryAdapter{
			AttachmentStore: a.AttachmentStore.WithTx(tx),
			db:              a.db,
			inTx:            true,
		})
	})
}
