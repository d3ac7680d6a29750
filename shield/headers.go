package shield

import "net/http"

// Headers is the fixed set of response headers written before any handler
// runs. Empty values are skipped.
type Headers []struct{ Name, Value string }

// DefaultHeaders suits a JSON and download API: nothing is rendered, framed
// or cached.
func DefaultHeaders() Headers {
	return Headers{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Cache-Control", "no-store"},
	}
}

// SecurityHeaders sets hs on every response. Handlers may still override
// Cache-Control or Content-Security-Policy afterwards.
func SecurityHeaders(hs Headers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range hs {
				if kv.Value != "" {
					h.Set(kv.Name, kv.Value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
