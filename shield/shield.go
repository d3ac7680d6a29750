// Package shield provides the HTTP middleware in front of pagekit's routes:
// security headers, request tracing with a per-request logger, panic
// recovery and the upload body ceiling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(500 << 20) {
//	    r.Use(mw)
//	}
package shield

import (
	"encoding/json"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// ErrorBody is the JSON error payload written by shield middleware. It has
// the same shape as the service's own error responses.
type ErrorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// WriteError writes body as JSON with the given status.
func WriteError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorBody{Code: code, Detail: detail})
}

// DefaultStack returns the standard middleware stack, outermost first:
// HeadToGet → SecurityHeaders → TraceID → Recover → MaxUploadBody.
func DefaultStack(maxUploadBytes int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		TraceID,
		Recover,
		MaxUploadBody(maxUploadBytes),
	}
}
