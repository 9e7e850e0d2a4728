package attachment

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Error kinds. Every error returned by the Service matches exactly one of
// them through errors.Is; the API maps them to status codes.
var (
	// ErrInvalidRequest indicates malformed input such as a non-positive task ID.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidFileType indicates the effective MIME type is not allow-listed.
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrFileSizeExceeded indicates the file is larger than the single-file limit.
	ErrFileSizeExceeded = errors.New("file size exceeded")

	// ErrStorageQuotaExceeded indicates the upload or copy would push the task past its quota.
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")

	// ErrAttachmentNotFound indicates that the attachment does not exist.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrStorageWriteFailure indicates the blob store rejected or failed a write.
	ErrStorageWriteFailure = errors.New("storage write failure")

	// ErrStorageReadFailure indicates a signed download URL could not be minted.
	ErrStorageReadFailure = errors.New("storage read failure")

	// ErrMetadataWriteFailure indicates the attachment record could not be written or deleted.
	ErrMetadataWriteFailure = errors.New("metadata write failure")

	// ErrMetadataReadFailure indicates attachment records could not be read.
	ErrMetadataReadFailure = errors.New("metadata read failure")
)

var kindNames = []struct {
	err  error
	name string
}{
	{ErrInvalidRequest, "InvalidRequest"},
	{ErrInvalidFileType, "InvalidFileType"},
	{ErrFileSizeExceeded, "FileSizeExceeded"},
	{ErrStorageQuotaExceeded, "StorageQuotaExceeded"},
	{ErrAttachmentNotFound, "AttachmentNotFound"},
	{ErrStorageWriteFailure, "StorageWriteFailure"},
	{ErrStorageReadFailure, "StorageReadFailure"},
	{ErrMetadataWriteFailure, "MetadataWriteFailure"},
	{ErrMetadataReadFailure, "MetadataReadFailure"},
}

// KindOf returns the stable machine-readable kind of err, or "Internal"
// when err matches none of the kinds above.
func KindOf(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// ServiceError wraps an I/O failure with the operation it interrupted.
// It matches both its Kind and the underlying cause via errors.Is/As.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "upload", "delete")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Kind is one of the sentinel errors above
	Kind error
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is/errors.As.
func (e *ServiceError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newServiceError(operation, message string, kind, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Kind:      kind,
		Err:       err,
	}
}

// FileTooLargeError reports a file over the single-file limit.
// It matches ErrFileSizeExceeded.
type FileTooLargeError struct {
	SizeBytes  int64
	LimitBytes int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file size %s exceeds the %s limit",
		humanize.IBytes(uint64(e.SizeBytes)), humanize.IBytes(uint64(e.LimitBytes)))
}

// Is makes errors.Is(err, ErrFileSizeExceeded) true.
func (e *FileTooLargeError) Is(target error) bool {
	return target == ErrFileSizeExceeded
}

// QuotaExceededError reports that a task's attachments would exceed the quota.
// It matches ErrStorageQuotaExceeded and carries the figures callers need
// to render "X of Y used".
type QuotaExceededError struct {
	TaskID            int64
	CurrentUsageBytes int64
	RequestedBytes    int64
	LimitBytes        int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded for task %d: %s of %s used, %s more requested",
		e.TaskID,
		humanize.IBytes(uint64(e.CurrentUsageBytes)),
		humanize.IBytes(uint64(e.LimitBytes)),
		humanize.IBytes(uint64(e.RequestedBytes)))
}

// Is makes errors.Is(err, ErrStorageQuotaExceeded) true.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrStorageQuotaExceeded
}
