package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey returns a middleware that rejects requests whose X-API-Key
// header does not match one of keys with 401. An empty keys list rejects
// every request.
func RequireAPIKey(keys []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	expected := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			expected = append(expected, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validKey([]byte(r.Header.Get(APIKeyHeader)), expected) {
				logger.WarnContext(r.Context(), "api key mismatch",
					"path", r.URL.Path,
					"request_id", chimiddleware.GetReqID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"api key required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validKey compares got against every expected key in constant time.
func validKey(got []byte, expected [][]byte) bool {
	if len(got) == 0 {
		return false
	}
	match := 0
	for _, k := range expected {
		match |= subtle.ConstantTimeCompare(got, k)
	}
	return match == 1
}
