package middleware

import (
	"net/http"
)

// ReadOnlyMiddleware rejects writes when readOnly is set. Super admins still get
// through, so it has to run after JWTAuthMiddleware.
func ReadOnlyMiddleware(readOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !readOnly || IsSuperAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "Read-only mode: only GET requests are allowed", http.StatusForbidden)
			}
		})
	}
}
