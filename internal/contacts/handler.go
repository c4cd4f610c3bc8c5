package contacts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianpack/backoffice/internal/platform/httpx"
	"github.com/meridianpack/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for contacts.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountPublicRoutes registers the unauthenticated website intake endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/", h.handleSubmit)
}

// MountRoutes registers the back-office endpoints. Route-level permission
// checks are applied by the router; handlers enforce ownership.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/convert", h.handleConvert)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub PublicSubmission
	if err := httpx.DecodeJSON(r, &sub); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Malformed request body")
		return
	}
	if err := h.validator.Struct(sub); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Name, email and message are required")
		return
	}
	id, err := h.service.SubmitPublic(r.Context(), sub)
	if err != nil {
		h.logger.Error("submit contact", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "Failed to save contact. Please try again.")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "contact_id": id})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	list, page, err := h.service.List(r.Context(), sess, filter)
	if err != nil {
		h.logger.Error("list contacts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Contact{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contacts": list, "pagination": page})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Malformed request body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Invalid input")
		return
	}
	c, err := h.service.Create(r.Context(), sess, in)
	if err != nil {
		h.logger.Error("create contact", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"contact": c})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), sess, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contact": c})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Malformed request body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Invalid input")
		return
	}
	c, err := h.service.Update(r.Context(), sess, id, in)
	if err != nil {
		h.logger.Error("update contact", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contact": c})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), sess, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}
	quoteID, err := h.service.Convert(r.Context(), sess, id)
	if err != nil {
		if errors.Is(err, ErrAlreadyConverted) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "Contact already converted")
			return
		}
		h.logger.Error("convert contact", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"quote": map[string]int64{"id": quoteID}})
}

func (h *Handler) sessionAndID(w http.ResponseWriter, r *http.Request) (*shared.Session, int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return nil, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Invalid id")
		return nil, 0, false
	}
	return sess, id, true
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	f := ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	var err error
	if f.Page, err = parseIntParam(q.Get("page"), 1); err != nil {
		return f, errors.New("invalid page")
	}
	if f.PerPage, err = parseIntParam(q.Get("limit"), 25); err != nil {
		return f, errors.New("invalid limit")
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("invalid from timestamp")
		}
		f.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("invalid to timestamp")
		}
		f.To = &ts
	}
	return f, nil
}

func parseIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.New("invalid")
	}
	return v, nil
}
