package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

// --- base auth middleware ---

// Auth validates the bearer token and injects the caller identity into the
// request context. Requests without a header pass through anonymously, so
// public endpoints keep working; protected ones reject in RequireSelf.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		identity, err := m.tokens.Validate(ctx, token)
		if err != nil {
			m.log.Warn(ctx, "failed to authenticate request")
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = models.WithIdentity(ctx, identity)
		ctx = wrap.WithUserID(ctx, strconv.FormatInt(identity.UserID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSelf allows only an authenticated caller with the given role whose
// user id matches the path parameter. Usage:
//
//	mux.Handle("PUT /drivers/{driver_id}/status", m.RequireSelf(types.DriverRole, "driver_id", h.SetStatus))
func (m *Middleware) RequireSelf(role types.UserRole, param string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := models.IdentityFromContext(r.Context())
		if !ok {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if identity.Role != role {
			errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
			return
		}

		// Чужой ресурс: id в пути должен совпадать с субъектом токена.
		id, err := strconv.ParseInt(r.PathValue(param), 10, 64)
		if err != nil || id != identity.UserID {
			errorResponse(w, http.StatusForbidden, "forbidden: not your resource")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAuth allows any authenticated caller regardless of role.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := models.IdentityFromContext(r.Context()); !ok {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --- header parser ---
func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
