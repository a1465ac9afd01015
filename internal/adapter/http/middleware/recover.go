package middleware

import (
	"net/http"
	"runtime/debug"

	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

// Recover converts a handler panic into a 500. The panic value stays in
// the logs, клиент получает только общий текст.
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				ctx := wrap.WithAction(r.Context(), "panic_recovered")
				m.log.Error(ctx, "handler panicked", errFromPanic(p),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Connection", "close")
				errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
