package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"
)

// AdminTokenHeader carries the shared admin token
const AdminTokenHeader = "X-Admin-Token"

// AdminAuthMiddleware guards operator endpoints with a shared token. An empty
// configured token disables the admin API instead of leaving it open.
func AdminAuthMiddleware(token string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin API is not configured", http.StatusServiceUnavailable)
				return
			}
			provided := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remoteAddr", r.RemoteAddr).
					Bool("tokenPresent", provided != "").
					Msg("Rejected admin request")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
