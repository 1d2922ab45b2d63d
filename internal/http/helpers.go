package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"finance/internal/apperror"
	"finance/internal/auth"
	"finance/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "status", status, "error", err)
	}
}

// currentUser writes 401 when the auth middleware did not run.
func currentUser(w http.ResponseWriter, r *http.Request) (core.User, bool) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		apperror.Write(w, r, apperror.Unauthorized("authentication required"))
		return core.User{}, false
	}
	return user, true
}

// sanitizeInput trims and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
