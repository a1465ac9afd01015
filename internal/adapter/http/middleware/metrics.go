package middleware

import (
	"net/http"
	"time"

	"github.com/gridcab/dispatch/pkg/metrics"
)

// Metrics наблюдает каждый запрос: счётчик, длительность и in-flight gauge.
// Сам /metrics не инструментируется, иначе скрейп считает сам себя.
func (m *Middleware) Metrics(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			inFlight := metrics.HttpRequestsInFlight.WithLabelValues(service)
			inFlight.Inc()
			defer inFlight.Dec()

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sr, r)

			metrics.RecordHTTPMetrics(service, r.Method, r.URL.Path, sr.status, time.Since(start))
		})
	}
}
