package rbac

import (
	"net/http"

	"log/slog"

	"github.com/meridianpack/backoffice/internal/platform/httpx"
	"github.com/meridianpack/backoffice/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// WithCache installs a fresh request-scoped permission cache and drops it
// when the request ends.
func (m Middleware) WithCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cache := NewCache()
		defer cache.Clear()
		next.ServeHTTP(w, r.WithContext(ContextWithCache(r.Context(), cache)))
	})
}

// Require ensures the current user holds a grant for module/action at any
// scope. Handlers behind it still apply per-resource ownership checks; this
// gate only rejects users with no grant at all.
func (m Middleware) Require(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			up := m.Service.UserPermissions(r.Context(), sess.UserID)
			if up == nil || !HasPermission(up, module, action, ScopeOwn) {
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.Int64("user_id", sess.UserID),
						slog.String("module", module),
						slog.String("action", action))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
