package middleware

import (
	"net/http"

	"github.com/google/uuid"

	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id for log correlation. An id supplied
// by the caller is kept, otherwise a fresh one is generated.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(wrap.WithRequestID(r.Context(), id))

		next.ServeHTTP(w, r)
	})
}
