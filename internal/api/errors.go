package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tasktrack/attachments/internal/api/shared"
	"github.com/tasktrack/attachments/internal/service/attachment"
)

// MapErrorToStatusCode maps service errors to HTTP status codes. Validation
// kinds are client errors, a missing attachment is 404 and every storage or
// metadata failure is 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, attachment.ErrInvalidRequest),
		errors.Is(err, attachment.ErrInvalidFileType),
		errors.Is(err, attachment.ErrFileSizeExceeded),
		errors.Is(err, attachment.ErrStorageQuotaExceeded):
		return http.StatusBadRequest

	case errors.Is(err, attachment.ErrAttachmentNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err that never
// includes internal details such as SQL, endpoints or storage keys.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		sizeErr  *attachment.FileTooLargeError
		quotaErr *attachment.QuotaExceededError
	)

	switch {
	case errors.As(err, &sizeErr):
		return fmt.Sprintf("File size exceeds %s limit.", humanize.IBytes(uint64(sizeErr.LimitBytes)))

	case errors.As(err, &quotaErr):
		return fmt.Sprintf("Task storage quota exceeded. Current usage: %s of %s.",
			humanize.IBytes(uint64(quotaErr.CurrentUsageBytes)),
			humanize.IBytes(uint64(quotaErr.LimitBytes)))

	case errors.Is(err, attachment.ErrInvalidFileType):
		return "Invalid file format. This file type is not allowed."

	case errors.Is(err, attachment.ErrInvalidRequest):
		return "Invalid request"

	case errors.Is(err, attachment.ErrAttachmentNotFound):
		return "Attachment not found"

	case errors.Is(err, attachment.ErrStorageWriteFailure):
		return "Failed to store file"

	case errors.Is(err, attachment.ErrStorageReadFailure):
		return "Failed to create download URL"

	case errors.Is(err, attachment.ErrMetadataWriteFailure):
		return "Failed to save attachment"

	case errors.Is(err, attachment.ErrMetadataReadFailure):
		return "Failed to read attachments"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for a service error: status from
// MapErrorToStatusCode, the safe message, the machine-readable kind and, for
// quota failures, the usage figures.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	resp := shared.ErrorResponse{
		Error: GetSafeErrorMessage(err),
		Kind:  attachment.KindOf(err),
		Code:  MapErrorToStatusCode(err),
	}

	var quotaErr *attachment.QuotaExceededError
	if errors.As(err, &quotaErr) {
		current, limit := quotaErr.CurrentUsageBytes, quotaErr.LimitBytes
		resp.CurrentUsageBytes = &current
		resp.LimitBytes = &limit
	}

	shared.RespondWithErrorResponse(w, r, resp, err)
}

// SanitizeValidationError turns a validator error into a short message
// naming the offending field, without echoing the submitted value.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'uploadForm.TaskID' Error:Field validation for 'TaskID' failed on the 'gt' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gt", "min":
		return "must be positive"
	case "nefield":
		return "must differ from the source"
	default:
		return "validation failed"
	}
}
