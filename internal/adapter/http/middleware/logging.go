package middleware

import (
	"net/http"
	"time"
)

// Logging writes an access log line per request at debug level.
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		m.log.Debug(r.Context(), "started",
			"method", r.Method,
			"path", r.URL.Path,
			"host", r.Host,
		)

		next.ServeHTTP(sr, r)

		m.log.Debug(r.Context(), "completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"duration", time.Since(start),
		)
	})
}
