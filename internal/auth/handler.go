package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianpack/backoffice/internal/platform/httpx"
	"github.com/meridianpack/backoffice/internal/shared"
)

// LoginMetrics counts login attempts by outcome.
type LoginMetrics interface {
	RecordLogin(outcome string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sessions  *shared.SessionStore
	metrics   LoginMetrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionStore, metrics LoginMetrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sessions:  sessions,
		metrics:   metrics,
		validator: validator.New(),
	}
}

func (h *Handler) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(outcome)
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

type loginRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	Password   string `json:"password" validate:"required"`
}

type sessionUser struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"must_change_password"`
}

type loginResponse struct {
	User      sessionUser `json:"user"`
	CSRFToken string      `json:"csrf_token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Malformed request body")
		return
	}
	// Accept either an explicit username or a generic identifier
	// (username or email).
	identifier := req.Username
	if identifier == "" {
		identifier = req.Identifier
	}
	if err := h.validator.Struct(req); err != nil || identifier == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Username and password are required")
		return
	}

	user, err := h.service.Authenticate(r.Context(), identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrAccountLocked):
			h.recordLogin("locked")
			h.logger.Warn("login attempt on locked account", slog.String("identifier", identifier))
		case errors.Is(err, shared.ErrInvalidCredentials):
			h.recordLogin("invalid")
			h.logger.Warn("login attempt with invalid credentials", slog.String("identifier", identifier))
		default:
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	sessionID, csrfToken, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		// Fail loud: the caller must know the login did not complete.
		h.logger.Error("create session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.sessions.SetCookie(w, sessionID)

	h.recordLogin("success")
	h.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username))

	httpx.JSON(w, http.StatusOK, loginResponse{
		User: sessionUser{
			ID:                 user.ID,
			Username:           user.Username,
			Email:              user.Email,
			Role:               user.Role,
			MustChangePassword: user.MustChangePassword,
		},
		CSRFToken: csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(shared.SessionCookieName); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("delete session", slog.Any("error", err))
		}
	}
	h.sessions.ClearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired session")
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		User: sessionUser{
			ID:                 sess.UserID,
			Username:           sess.Username,
			Email:              sess.Email,
			Role:               sess.Role,
			MustChangePassword: sess.MustChangePassword,
		},
		CSRFToken: sess.CSRFToken,
	})
}
