// Package attachment implements attachment storage management for tasks:
// validated uploads, listing with signed download URLs, reference-counted
// deletes and de-duplicated copies between tasks.
package attachment

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tasktrack/attachments/internal/domain"
)

// UploadRequest describes one file to attach to a task.
type UploadRequest struct {
	TaskID     int64
	UploadedBy int64
	FileName   string
	// MimeType is the declared content type; empty means guess from FileName.
	MimeType string
	// Size must equal the number of bytes Content yields.
	Size    int64
	Content io.Reader
}

// AttachmentView is an attachment record with a signed download URL.
// DownloadURL is empty when the URL could not be minted.
type AttachmentView struct {
	domain.Attachment
	DownloadURL string `json:"download_url,omitempty"`
}

// Config is the service's share of the application configuration.
type Config struct {
	Policy Policy
	// SignedURLTTL is how long minted download URLs stay valid.
	SignedURLTTL time.Duration
	// OperationTimeout bounds each blob store and metadata call; zero disables it.
	OperationTimeout time.Duration
}

// Service is the attachment orchestrator. It is the only entry point to
// the validator, key generator, blob store and metadata repository.
type Service interface {
	// Upload validates the file, stores its bytes and records it.
	//
	// Errors:
	//   - ErrInvalidRequest, ErrInvalidFileType, ErrFileSizeExceeded, or a
	//     *QuotaExceededError (ErrStorageQuotaExceeded); nothing is written
	//   - ErrStorageWriteFailure when the blob store rejects the bytes
	//   - ErrMetadataWriteFailure when the record can't be written; the
	//     stored bytes are deleted on a best-effort basis
	Upload(ctx context.Context, req UploadRequest) (*domain.Attachment, error)

	// List returns the task's attachments, newest first, each with a
	// signed download URL when one could be minted.
	List(ctx context.Context, taskID int64) ([]AttachmentView, error)

	// Get returns one attachment or ErrAttachmentNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)

	// DownloadURL mints a signed URL for the attachment's bytes.
	DownloadURL(ctx context.Context, id uuid.UUID) (string, error)

	// Delete removes the attachment record, and the stored bytes when no
	// other record references them. A second Delete of the same id returns
	// ErrAttachmentNotFound.
	Delete(ctx context.Context, id uuid.UUID) error

	// Copy gives targetTaskID its own records for every attachment of
	// sourceTaskID, sharing the stored bytes. Items that fail are skipped;
	// the returned slice holds only the records created. Copying a task onto
	// itself creates nothing.
	Copy(ctx context.Context, sourceTaskID, targetTaskID int64) ([]*domain.Attachment, error)
}
