package shield

import (
	"fmt"
	"net/http"
)

// MaxUploadBody rejects request bodies larger than maxBytes with 413 and a
// too_large JSON error. A declared Content-Length over the limit is refused
// before the body is read; an undeclared or understated body is capped with
// http.MaxBytesReader, whose error the handler maps to the same response.
func MaxUploadBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				GetLogger(r.Context()).Warn("upload over ceiling", "content_length", r.ContentLength, "max", maxBytes)
				WriteError(w, http.StatusRequestEntityTooLarge, "too_large",
					fmt.Sprintf("request body exceeds %d bytes", maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
