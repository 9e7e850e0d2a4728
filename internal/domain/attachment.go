package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Attachment-specific validation errors
var (
	// ErrAttachmentIDEmpty is returned when an attachment ID is empty or nil.
	ErrAttachmentIDEmpty = errors.New("attachment ID cannot be empty")

	// ErrAttachmentTaskIDInvalid is returned when the owning task ID is not a positive integer.
	ErrAttachmentTaskIDInvalid = errors.New("attachment task ID must be positive")

	// ErrAttachmentFileNameEmpty is returned when the original file name is empty.
	ErrAttachmentFileNameEmpty = errors.New("attachment file name cannot be empty")

	// ErrAttachmentStorageKeyEmpty is returned when the blob storage key is empty.
	ErrAttachmentStorageKeyEmpty = errors.New("attachment storage key cannot be empty")

	// ErrAttachmentFileSizeNegative is returned when the recorded size is below zero.
	ErrAttachmentFileSizeNegative = errors.New("attachment file size cannot be negative")

	// ErrAttachmentMimeTypeEmpty is returned when no content type is recorded.
	ErrAttachmentMimeTypeEmpty = errors.New("attachment mime type cannot be empty")

	// ErrAttachmentOriginMismatch is returned when is_inherited and original_task_id disagree:
	// inherited records must name their origin task, directly uploaded ones must not.
	ErrAttachmentOriginMismatch = errors.New("attachment origin does not match inheritance flag")
)

// Attachment is the metadata record for a file attached to a task.
// The bytes live in the blob store under StorageKey, which may be shared
// by several attachments when a task inherits attachments from another one.
// Attachments are immutable once created.
type Attachment struct {
	ID             uuid.UUID `json:"id"`
	TaskID         int64     `json:"task_id"`
	FileName       string    `json:"file_name"`
	StorageKey     string    `json:"storage_key"`
	FileSize       int64     `json:"file_size"`
	MimeType       string    `json:"mime_type"`
	UploadedBy     int64     `json:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"`
	OriginalTaskID *int64    `json:"original_task_id"`
	IsInherited    bool      `json:"is_inherited"`
}

// NewAttachment creates the record for a direct upload of fileName to taskID.
// The bytes must already be stored under storageKey.
func NewAttachment(
	taskID int64,
	fileName string,
	storageKey string,
	fileSize int64,
	mimeType string,
	uploadedBy int64,
) (*Attachment, error) {
	attachment := &Attachment{
		ID:         uuid.New(),
		TaskID:     taskID,
		FileName:   fileName,
		StorageKey: storageKey,
		FileSize:   fileSize,
		MimeType:   mimeType,
		UploadedBy: uploadedBy,
		UploadedAt: time.Now().UTC(),
	}

	if err := attachment.Validate(); err != nil {
		return nil, err
	}

	return attachment, nil
}

// RootTaskID returns the task that physically uploaded the bytes behind this
// attachment: the recorded origin for inherited records, the owning task otherwise.
func (a *Attachment) RootTaskID() int64 {
	if a.IsInherited && a.OriginalTaskID != nil {
		return *a.OriginalTaskID
	}
	return a.TaskID
}

// InheritTo builds a new attachment for targetTaskID that shares this
// attachment's bytes. Uploader, upload time, size and type are carried over
// unchanged and the origin always resolves to the root of the inheritance chain.
func (a *Attachment) InheritTo(targetTaskID int64) (*Attachment, error) {
	root := a.RootTaskID()
	inherited := &Attachment{
		ID:             uuid.New(),
		TaskID:         targetTaskID,
		FileName:       a.FileName,
		StorageKey:     a.StorageKey,
		FileSize:       a.FileSize,
		MimeType:       a.MimeType,
		UploadedBy:     a.UploadedBy,
		UploadedAt:     a.UploadedAt,
		OriginalTaskID: &root,
		IsInherited:    true,
	}

	if err := inherited.Validate(); err != nil {
		return nil, err
	}

	return inherited, nil
}

// Validate checks if the Attachment has valid data.
// Returns an error if any field fails validation.
func (a *Attachment) Validate() error {
	if a.ID == uuid.Nil {
		return ErrAttachmentIDEmpty
	}

	if a.TaskID <= 0 {
		return ErrAttachmentTaskIDInvalid
	}

	if a.FileName == "" {
		return ErrAttachmentFileNameEmpty
	}

	if a.StorageKey == "" {
		return ErrAttachmentStorageKeyEmpty
	}

	if a.FileSize < 0 {
		return ErrAttachmentFileSizeNegative
	}

	if a.MimeType == "" {
		return ErrAttachmentMimeTypeEmpty
	}

	if a.IsInherited != (a.OriginalTaskID != nil) {
		return ErrAttachmentOriginMismatch
	}

	return nil
}
