package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/attachments/internal/service/attachment"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("pq: connection reset")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", fmt.Errorf("%w: bad id", attachment.ErrInvalidRequest), http.StatusBadRequest},
		{"invalid file type", attachment.ErrInvalidFileType, http.StatusBadRequest},
		{"file too large", &attachment.FileTooLargeError{SizeBytes: 2, LimitBytes: 1}, http.StatusBadRequest},
		{"quota", &attachment.QuotaExceededError{}, http.StatusBadRequest},
		{"not found", attachment.ErrAttachmentNotFound, http.StatusNotFound},
		{"storage write", &attachment.ServiceError{Kind: attachment.ErrStorageWriteFailure, Err: cause}, http.StatusInternalServerError},
		{"metadata read", &attachment.ServiceError{Kind: attachment.ErrMetadataReadFailure, Err: cause}, http.StatusInternalServerError},
		{"unknown", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage_FileTypeFollowsPolicy(t *testing.T) {
	t.Parallel()

	v := attachment.NewValidator(attachment.Policy{AllowedMimeTypes: []string{"text/csv"}}, nil)
	_, err := v.CheckFile("report.pdf", "", 10)
	require.ErrorIs(t, err, attachment.ErrInvalidFileType)

	msg := GetSafeErrorMessage(err)
	assert.Equal(t, "Invalid file format. This file type is not allowed.", msg)
	assert.NotContains(t, msg, "PDF")
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"file too large", &attachment.FileTooLargeError{SizeBytes: 60 << 20, LimitBytes: 50 << 20}, "File size exceeds 50 MiB limit."},
		{"invalid type", attachment.ErrInvalidFileType, "Invalid file format. This file type is not allowed."},
		{"not found", attachment.ErrAttachmentNotFound, "Attachment not found"},
		{
			"metadata write hides cause",
			&attachment.ServiceError{
				Kind: attachment.ErrMetadataWriteFailure,
				Err:  errors.New("INSERT INTO task_attachments failed at postgres://app:pw@db"),
			},
			"Failed to save attachment",
		},
		{"unknown", errors.New("secret internals"), "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	v := validator.New()

	err := v.Struct(uploadForm{TaskID: 7})
	assert.Equal(t, "Invalid UploadedBy: must be positive", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
}
