package quotes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridianpack/backoffice/internal/contacts"
	"github.com/meridianpack/backoffice/internal/mail"
	"github.com/meridianpack/backoffice/internal/platform/httpx"
	"github.com/meridianpack/backoffice/internal/rbac"
	"github.com/meridianpack/backoffice/internal/shared"
	"github.com/meridianpack/backoffice/jobs"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, q Quote) (int64, error)
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, f ListFilter) ([]Quote, int, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
}

// Notifier enqueues notification email for the worker.
type Notifier interface {
	EnqueueNotification(ctx context.Context, payload jobs.NotificationPayload) (*asynq.TaskInfo, error)
}

// EventSink records audit events.
type EventSink interface {
	Record(ctx context.Context, ev shared.Event) error
}

// Service implements quote business rules.
type Service struct {
	store  Store
	perms  *rbac.Service
	queue  Notifier
	events EventSink
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, perms *rbac.Service, queue Notifier, events EventSink, logger *slog.Logger) *Service {
	return &Service{store: store, perms: perms, queue: queue, events: events, logger: logger}
}

// PublicSubmission is an unauthenticated quote-request submission.
type PublicSubmission struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required,max=50"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,max=5"`
	Company     *string `json:"company" validate:"omitempty,max=255"`
	Quantity    *string `json:"quantity" validate:"omitempty,max=100"`
	Product     *string `json:"product" validate:"omitempty,max=500"`
	Message     *string `json:"message" validate:"omitempty,max=5000"`
}

// SubmitPublic persists a website quote request and queues the
// notification email. Queue failures are logged, not surfaced.
func (s *Service) SubmitPublic(ctx context.Context, sub PublicSubmission) (int64, error) {
	phone := sub.Phone
	id, err := s.store.Insert(ctx, Quote{
		Name:        sub.Name,
		Email:       sub.Email,
		Phone:       &phone,
		CountryCode: sub.CountryCode,
		Company:     sub.Company,
		Quantity:    sub.Quantity,
		Product:     sub.Product,
		Message:     sub.Message,
		Status:      StatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("insert quote: %w", err)
	}

	payload := jobs.NotificationPayload{
		Kind: jobs.NotificationQuote,
		Submission: mail.Submission{
			Name:     sub.Name,
			Email:    sub.Email,
			Phone:    sub.Phone,
			Company:  deref(sub.Company),
			Country:  deref(sub.CountryCode),
			Quantity: deref(sub.Quantity),
			Product:  deref(sub.Product),
			Message:  deref(sub.Message),
		},
	}
	if _, err := s.queue.EnqueueNotification(ctx, payload); err != nil {
		s.logger.Error("enqueue quote notification",
			slog.Int64("quote_id", id), slog.Any("error", err))
	}
	return id, nil
}

// CreateFromContact implements contacts.QuoteCreator: the converted quote
// starts pending, owned by the converting user, with the contact's subject
// as the product line.
func (s *Service) CreateFromContact(ctx context.Context, c contacts.Contact, ownerID int64) (int64, error) {
	product := "General Inquiry"
	if c.Subject != nil && *c.Subject != "" {
		product = *c.Subject
	}
	message := c.Message
	return s.store.Insert(ctx, Quote{
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		CountryCode: c.CountryCode,
		Company:     c.Company,
		Quantity:    c.Quantity,
		Product:     &product,
		Message:     &message,
		Status:      StatusPending,
		OwnerID:     &ownerID,
	})
}

// List returns quotes visible to the session user.
func (s *Service) List(ctx context.Context, sess *shared.Session, f ListFilter) ([]Quote, shared.Pagination, error) {
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.HasPermission(perms, shared.ModuleQuotes, shared.ActionRead, rbac.ScopeOwn) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	if !rbac.HasPermission(perms, shared.ModuleQuotes, shared.ActionRead, rbac.ScopeAll) {
		f.ScopeOwnerID = &sess.UserID
	}

	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list quotes: %w", err)
	}
	list = rbac.FilterByScope(perms, shared.ModuleQuotes, shared.ActionRead, list)
	return list, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// Get returns one quote, enforcing ownership for OWN-scoped users.
func (s *Service) Get(ctx context.Context, sess *shared.Session, id int64) (*Quote, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleQuotes, shared.ActionRead, q.OwnerID) {
		return nil, shared.ErrForbidden
	}
	return q, nil
}

// CreateInput is a back-office quote creation request.
type CreateInput struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=50"`
	CountryCode    *string `json:"country_code" validate:"omitempty,startswith=+,max=5"`
	Company        *string `json:"company" validate:"omitempty,max=255"`
	Quantity       *string `json:"quantity" validate:"omitempty,max=100"`
	Product        *string `json:"product" validate:"omitempty,max=500"`
	Message        *string `json:"message" validate:"omitempty,max=5000"`
	Status         string  `json:"status" validate:"omitempty,max=50"`
	OwnerID        *int64  `json:"owner_id"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0"`
}

// Create inserts a quote. Only ALL-scoped users can assign an owner other
// than themselves.
func (s *Service) Create(ctx context.Context, sess *shared.Session, in CreateInput) (*Quote, error) {
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.HasPermission(perms, shared.ModuleQuotes, shared.ActionCreate, rbac.ScopeOwn) {
		return nil, shared.ErrForbidden
	}

	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status)
	}

	owner := sess.UserID
	if in.OwnerID != nil && rbac.HasPermission(perms, shared.ModuleQuotes, shared.ActionCreate, rbac.ScopeAll) {
		owner = *in.OwnerID
	}
	q := Quote{
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		CountryCode:    in.CountryCode,
		Company:        in.Company,
		Quantity:       in.Quantity,
		Product:        in.Product,
		Message:        in.Message,
		Status:         status,
		OwnerID:        &owner,
		EstimatedValue: in.EstimatedValue,
	}
	id, err := s.store.Insert(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("insert quote: %w", err)
	}
	q.ID = id
	s.recordEvent(ctx, "quote_created", id, sess.UserID, map[string]any{"quote": in})
	return &q, nil
}

// UpdateInput carries the updatable quote fields; nil means unchanged.
type UpdateInput struct {
	Name           *string  `json:"name" validate:"omitempty,max=255"`
	Email          *string  `json:"email" validate:"omitempty,email"`
	Phone          *string  `json:"phone" validate:"omitempty,max=50"`
	Company        *string  `json:"company" validate:"omitempty,max=255"`
	Quantity       *string  `json:"quantity" validate:"omitempty,max=100"`
	Product        *string  `json:"product" validate:"omitempty,max=500"`
	Message        *string  `json:"message" validate:"omitempty,max=5000"`
	Status         *string  `json:"status" validate:"omitempty,max=50"`
	OwnerID        *int64   `json:"owner_id"`
	EstimatedValue *float64 `json:"estimated_value" validate:"omitempty,gte=0"`
}

// Update applies partial changes, enforcing ownership for OWN-scoped users.
func (s *Service) Update(ctx context.Context, sess *shared.Session, id int64, in UpdateInput) (*Quote, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleQuotes, shared.ActionUpdate, existing.OwnerID) {
		return nil, shared.ErrForbidden
	}

	updates := make(map[string]interface{})
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Email != nil {
		updates["email"] = *in.Email
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	if in.Company != nil {
		updates["company"] = *in.Company
	}
	if in.Quantity != nil {
		updates["quantity"] = *in.Quantity
	}
	if in.Product != nil {
		updates["product"] = *in.Product
	}
	if in.Message != nil {
		updates["message"] = *in.Message
	}
	if in.Status != nil {
		if !ValidStatus(*in.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.EstimatedValue != nil {
		updates["estimated_value"] = *in.EstimatedValue
	}
	if in.OwnerID != nil {
		if !rbac.HasPermission(perms, shared.ModuleQuotes, shared.ActionUpdate, rbac.ScopeAll) {
			return nil, shared.ErrForbidden
		}
		updates["owner_id"] = *in.OwnerID
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}
	s.recordEvent(ctx, "quote_updated", id, sess.UserID, map[string]any{"changes": in})
	return s.store.Get(ctx, id)
}

// Delete removes a quote, enforcing ownership for OWN-scoped users.
func (s *Service) Delete(ctx context.Context, sess *shared.Session, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleQuotes, shared.ActionDelete, existing.OwnerID) {
		return shared.ErrForbidden
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	s.recordEvent(ctx, "quote_deleted", id, sess.UserID, nil)
	return nil
}

func (s *Service) recordEvent(ctx context.Context, eventType string, recordID, actorID int64, changes map[string]any) {
	if s.events == nil {
		return
	}
	ev := shared.Event{Type: eventType, Table: "quotes", RecordID: recordID, ActorID: actorID, Changes: changes}
	if err := s.events.Record(ctx, ev); err != nil {
		s.logger.Error("record event", slog.String("type", eventType), slog.Any("error", err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
