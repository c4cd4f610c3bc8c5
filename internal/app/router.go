package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridianpack/backoffice/internal/auth"
	"github.com/meridianpack/backoffice/internal/contacts"
	"github.com/meridianpack/backoffice/internal/observability"
	"github.com/meridianpack/backoffice/internal/quotes"
	"github.com/meridianpack/backoffice/internal/rbac"
	"github.com/meridianpack/backoffice/internal/roles"
	"github.com/meridianpack/backoffice/internal/shared"
	"github.com/meridianpack/backoffice/internal/users"
	"github.com/meridianpack/backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Sessions        *shared.SessionStore
	CSRF            *shared.CSRFGuard
	RBACMiddleware  rbac.Middleware
	Metrics         *observability.Metrics
	AuthHandler     *auth.Handler
	ContactsHandler *contacts.Handler
	QuotesHandler   *quotes.Handler
	UsersHandler    *users.Handler
	RolesHandler    *roles.Handler
	JobsHandler     *jobs.Handler
	Pool            *pgxpool.Pool
	Redis           *redis.Client
}

// NewRouter constructs the chi router with the default middleware stack and
// mounts public intake, auth and back-office API groups.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		RBAC:     params.RBACMiddleware,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		body := `{"status":"ok"}`
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("healthz postgres", slog.Any("error", err))
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","postgres":"down"}`
			}
		}
		if status == http.StatusOK && params.Redis != nil {
			if err := params.Redis.Ping(r.Context()).Err(); err != nil {
				params.Logger.Warn("healthz redis", slog.Any("error", err))
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","redis":"down"}`
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	authLimit := 10
	if params.Config != nil && params.Config.AuthRateLimit > 0 {
		authLimit = params.Config.AuthRateLimit
	}

	// Public intake endpoints. These take submissions from the marketing
	// site without a session, so they get a tighter per-IP rate limit.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(authLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Route("/api/contact", params.ContactsHandler.MountPublicRoutes)
		r.Route("/api/quote", params.QuotesHandler.MountPublicRoutes)
		r.Route("/api/auth", params.AuthHandler.MountRoutes)
	})

	mw := params.RBACMiddleware
	csrf := CSRFMiddleware(params.CSRF)
	r.Route("/api/contacts", func(r chi.Router) {
		r.Use(csrf, mw.Require(shared.ModuleContacts, shared.ActionRead))
		params.ContactsHandler.MountRoutes(r)
	})
	r.Route("/api/quotes", func(r chi.Router) {
		r.Use(csrf, mw.Require(shared.ModuleQuotes, shared.ActionRead))
		params.QuotesHandler.MountRoutes(r)
	})
	// Users and roles guard their own routes per action in MountRoutes.
	r.Route("/api/users", func(r chi.Router) {
		r.Use(csrf)
		params.UsersHandler.MountRoutes(r)
	})
	r.Route("/api/roles", func(r chi.Router) {
		r.Use(csrf)
		params.RolesHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/api/jobs", func(r chi.Router) {
			r.Use(mw.Require(shared.ModuleUsers, shared.ActionRead))
			params.JobsHandler.MountRoutes(r)
		})
	}

	return r
}
