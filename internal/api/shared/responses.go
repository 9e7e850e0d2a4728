package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tasktrack/attachments/internal/platform/logger"
	"github.com/tasktrack/attachments/internal/redact"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"-"` // Not serialized to JSON, used for logging
	TraceID string `json:"trace_id,omitempty"`

	// Set for StorageQuotaExceeded so clients can render "X of Y used"
	CurrentUsageBytes *int64 `json:"current_usage_bytes,omitempty"`
	LimitBytes        *int64 `json:"limit_bytes,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

// RespondWithError writes a JSON error response with the given status code and message.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithErrorResponse(w, r, ErrorResponse{Error: message, Code: status}, nil)
}

// RespondWithErrorAndLog writes a JSON error response carrying only
// userMessage and logs the redacted err alongside it.
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, status int, userMessage string, err error) {
	RespondWithErrorResponse(w, r, ErrorResponse{Error: userMessage, Code: status}, err)
}

// RespondWithErrorResponse fills in the trace ID, logs, and writes resp.
//
// 5xx responses are logged at ERROR, everything else at DEBUG.
func RespondWithErrorResponse(w http.ResponseWriter, r *http.Request, resp ErrorResponse, err error) {
	resp.TraceID = GetTraceID(r.Context())

	logAttrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", resp.Code),
		slog.String("user_message", resp.Error),
	}
	if resp.Kind != "" {
		logAttrs = append(logAttrs, slog.String("kind", resp.Kind))
	}
	if err != nil {
		// Raw error text only ever reaches the logs, and only redacted
		logAttrs = append(logAttrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	level := slog.LevelDebug
	if resp.Code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "API error response", logAttrs...)

	RespondWithJSON(w, r, resp.Code, resp)
}
