package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tasktrack/attachments/internal/api/shared"
	"github.com/tasktrack/attachments/internal/platform/logger"
)

// UserIDHeader carries the acting user's ID, set by the upstream auth layer.
const UserIDHeader = "X-User-Id"

// ActingUser copies a valid X-User-Id header into the request context.
// The value is trusted as-is; a malformed header is rejected with 400 and a
// missing one is left for the handler to resolve.
func ActingUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := shared.ParseID(raw)
		if err != nil || userID <= 0 {
			logger.FromContext(r.Context()).Debug("rejecting malformed user header",
				slog.String("value", raw))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+UserIDHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.SetUserID(r.Context(), userID)))
	})
}
