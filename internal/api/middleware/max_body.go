package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/studycompanion/internal/api"
)

// MaxBodyBytes bounds JSON request bodies. A declared Content-Length over the
// limit is refused with 413 before the handler runs; bodies of unknown length
// are cut off at the limit and fail while decoding. limit <= 0 disables it.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	tooLarge := fmt.Sprintf("request body exceeds %d bytes", limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil && r.Body != http.NoBody {
				if r.ContentLength > limit {
					api.Error(w, http.StatusRequestEntityTooLarge, tooLarge)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
