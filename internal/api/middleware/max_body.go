package middleware

import (
	"net/http"

	"github.com/kernelworks/kernelbot/internal/api"
)

// MaxBodyBytes caps the request body size. Activities are small; anything
// near the limit is a misbehaving channel.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Reject early when the declared length already exceeds the
			// limit; MaxBytesReader catches chunked bodies.
			if r.ContentLength != -1 && r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
