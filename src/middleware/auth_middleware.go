package middleware

import (
	"crypto/subtle"
	"net/http"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminTokenMiddleware requires the configured admin token. With no token configured
// every request is refused.
func AdminTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin api disabled", http.StatusForbidden)
				return
			}
			got := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
