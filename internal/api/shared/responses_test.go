package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/attachments/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		data         interface{}
		expectedBody string
	}{
		{
			name:         "successful response",
			status:       http.StatusOK,
			data:         map[string]interface{}{"status": "ok"},
			expectedBody: `{"status":"ok"}`,
		},
		{
			name:         "empty list",
			status:       http.StatusOK,
			data:         []string{},
			expectedBody: `[]`,
		},
		{
			name:         "nil response",
			status:       http.StatusCreated,
			data:         nil,
			expectedBody: `null`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			RespondWithJSON(w, req, tc.status, tc.data)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestRespondWithErrorAndLog(t *testing.T) {
	buf, l := logger.NewTestLogger(t)
	ctx := logger.WithLogger(SetTraceID(context.Background(), "trace-1"), l)

	req := httptest.NewRequest(http.MethodPost, "/api/task-attachments/upload", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	cause := errors.New("dial postgres://app:hunter2@db:5432 failed")
	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "Failed to save attachment", cause)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to save attachment", resp.Error)
	assert.Equal(t, "trace-1", resp.TraceID)
	assert.NotContains(t, w.Body.String(), "postgres")

	logger.AssertLogContains(t, buf, `"level":"ERROR"`)
	logger.AssertLogContains(t, buf, "[REDACTED_CREDENTIAL]")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRespondWithError_ClientErrorsLogAtDebug(t *testing.T) {
	buf, l := logger.NewTestLogger(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(logger.WithLogger(context.Background(), l))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "Invalid taskID")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid taskID"}`, w.Body.String())
	logger.AssertLogContains(t, buf, `"level":"DEBUG"`)
}
