package attachment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"sentinel", ErrAttachmentNotFound, "AttachmentNotFound"},
		{"wrapped sentinel", fmt.Errorf("%w: bad", ErrInvalidFileType), "InvalidFileType"},
		{"file too large", &FileTooLargeError{SizeBytes: 2, LimitBytes: 1}, "FileSizeExceeded"},
		{"quota", &QuotaExceededError{TaskID: 7}, "StorageQuotaExceeded"},
		{"service error", newServiceError("upload", "x", ErrStorageWriteFailure, cause), "StorageWriteFailure"},
		{"unknown", cause, "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestServiceError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := fmt.Errorf("outer: %w", newServiceError("delete", "failed to delete attachment record", ErrMetadataWriteFailure, cause))

	assert.ErrorIs(t, err, ErrMetadataWriteFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrMetadataReadFailure)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "delete", svcErr.Operation)
	assert.Equal(t, "delete operation failed: failed to delete attachment record: connection reset", svcErr.Error())
}

func TestQuotaExceededError_Message(t *testing.T) {
	t.Parallel()

	err := &QuotaExceededError{TaskID: 7, CurrentUsageBytes: 48 * mib, RequestedBytes: 5 * mib, LimitBytes: 50 * mib}
	assert.Equal(t, "storage quota exceeded for task 7: 48 MiB of 50 MiB used, 5.0 MiB more requested", err.Error())
	assert.NotErrorIs(t, err, ErrFileSizeExceeded)
}
