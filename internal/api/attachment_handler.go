package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tasktrack/attachments/internal/api/shared"
	"github.com/tasktrack/attachments/internal/platform/logger"
	"github.com/tasktrack/attachments/internal/service/attachment"
)

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "task-attachments"

	multipartOverhead = 1 << 20 // 1 MiB
	multipartMemory   = 8 << 20 // 8 MiB; larger files spill to disk
)

// AttachmentHandler handles attachment HTTP requests.
type AttachmentHandler struct {
	service     attachment.Service
	maxFileSize int64
	validator   *validator.Validate
}

// NewAttachmentHandler creates an AttachmentHandler. maxFileSize caps the
// request body (plus multipart overhead); zero leaves it uncapped.
func NewAttachmentHandler(service attachment.Service, maxFileSize int64) *AttachmentHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	return &AttachmentHandler{
		service:     service,
		maxFileSize: maxFileSize,
		validator:   validator.New(),
	}
}

// Routes returns the attachment routes, to be mounted under /api/task-attachments.
func (h *AttachmentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Post("/upload", h.Upload)
	r.Get("/task/{taskID}", h.ListByTask)
	r.Post("/copy/{sourceTaskID}/{targetTaskID}", h.Copy)
	r.Get("/{attachmentID}", h.Get)
	r.Get("/{attachmentID}/download", h.Download)
	r.Delete("/{attachmentID}", h.Delete)
	return r
}

// Upload handles POST /upload.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			HandleAPIError(w, r, &attachment.FileTooLargeError{
				SizeBytes:  h.maxFileSize + multipartOverhead,
				LimitBytes: h.maxFileSize,
			})
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	var form uploadForm
	if form.TaskID, err = shared.ParseID(r.FormValue("task_id")); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task_id")
		return
	}
	if form.UploadedBy, err = shared.ParseID(r.FormValue("uploaded_by")); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid uploaded_by")
		return
	}
	if form.UploadedBy == 0 {
		form.UploadedBy, _ = shared.GetUserID(r.Context())
	}
	if err := h.validator.Struct(form); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	// Clients send octet-stream when they don't know the type; let the
	// extension decide in that case.
	declared := strings.TrimSpace(header.Header.Get("Content-Type"))
	if strings.EqualFold(declared, "application/octet-stream") {
		declared = ""
	}

	created, err := h.service.Upload(r.Context(), attachment.UploadRequest{
		TaskID:     form.TaskID,
		UploadedBy: form.UploadedBy,
		FileName:   header.Filename,
		MimeType:   declared,
		Size:       header.Size,
		Content:    file,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, attachmentToResponse(created))
}

// ListByTask handles GET /task/{taskID}.
func (h *AttachmentHandler) ListByTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := handlePathTaskID(w, r, "taskID")
	if !ok {
		return
	}

	views, err := h.service.List(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := make([]AttachmentResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, viewToResponse(v))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /{attachmentID}.
func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "attachmentID")
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, attachmentToResponse(record))
}

// Download handles GET /{attachmentID}/download.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "attachmentID")
	if !ok {
		return
	}

	url, err := h.service.DownloadURL(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DownloadURLResponse{URL: url})
}

// Delete handles DELETE /{attachmentID}.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "attachmentID")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DeleteResponse{Success: true})
}

// Copy handles POST /copy/{sourceTaskID}/{targetTaskID}.
func (h *AttachmentHandler) Copy(w http.ResponseWriter, r *http.Request) {
	sourceTaskID, ok := handlePathTaskID(w, r, "sourceTaskID")
	if !ok {
		return
	}
	targetTaskID, ok := handlePathTaskID(w, r, "targetTaskID")
	if !ok {
		return
	}

	copied, err := h.service.Copy(r.Context(), sourceTaskID, targetTaskID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := CopyResponse{Copied: make([]AttachmentResponse, 0, len(copied))}
	for _, c := range copied {
		resp.Copied = append(resp.Copied, attachmentToResponse(c))
	}
	resp.Count = len(resp.Copied)
	shared.RespondWithJSON(w, r, http.StatusCreated, resp)
}

// Health handles GET /health.
func (h *AttachmentHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Service: ServiceName})
}

// isBodyTooLarge reports whether err came from the MaxBytesReader. Some
// multipart paths flatten the error, so the message is checked too.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
