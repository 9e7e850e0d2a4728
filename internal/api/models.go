package api

import (
	"time"

	"github.com/tasktrack/attachments/internal/domain"
	"github.com/tasktrack/attachments/internal/service/attachment"
)

// uploadForm holds the non-file fields of an upload request.
type uploadForm struct {
	TaskID     int64 `validate:"gt=0"`
	UploadedBy int64 `validate:"gt=0"`
}

// AttachmentResponse is the wire form of an attachment record. The storage
// key stays internal.
type AttachmentResponse struct {
	ID             string    `json:"id"`
	TaskID         int64     `json:"task_id"`
	FileName       string    `json:"file_name"`
	FileSize       int64     `json:"file_size"`
	MimeType       string    `json:"mime_type"`
	UploadedBy     int64     `json:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"`
	OriginalTaskID *int64    `json:"original_task_id"`
	IsInherited    bool      `json:"is_inherited"`
	DownloadURL    string    `json:"download_url,omitempty"`
}

// DownloadURLResponse is returned by GET /{attachmentID}/download.
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// DeleteResponse is returned by DELETE /{attachmentID}.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// CopyResponse lists the records a copy created; skipped items are absent.
type CopyResponse struct {
	Copied []AttachmentResponse `json:"copied"`
	Count  int                  `json:"count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func attachmentToResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:             a.ID.String(),
		TaskID:         a.TaskID,
		FileName:       a.FileName,
		FileSize:       a.FileSize,
		MimeType:       a.MimeType,
		UploadedBy:     a.UploadedBy,
		UploadedAt:     a.UploadedAt,
		OriginalTaskID: a.OriginalTaskID,
		IsInherited:    a.IsInherited,
	}
}

func viewToResponse(v attachment.AttachmentView) AttachmentResponse {
	resp := attachmentToResponse(&v.Attachment)
	resp.DownloadURL = v.DownloadURL
	return resp
}
