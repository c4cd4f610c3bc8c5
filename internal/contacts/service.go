package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridianpack/backoffice/internal/mail"
	"github.com/meridianpack/backoffice/internal/rbac"
	"github.com/meridianpack/backoffice/internal/shared"
	"github.com/meridianpack/backoffice/jobs"
)

// ErrAlreadyConverted is returned when converting a contact that already
// produced a quote.
var ErrAlreadyConverted = errors.New("contact already converted")

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, c Contact) (int64, error)
	Get(ctx context.Context, id int64) (*Contact, error)
	List(ctx context.Context, f ListFilter) ([]Contact, int, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	MarkConverted(ctx context.Context, id, quoteID int64) error
	Delete(ctx context.Context, id int64) error
}

// QuoteCreator creates a quote row from a converted contact and returns
// the new quote id.
type QuoteCreator interface {
	CreateFromContact(ctx context.Context, c Contact, ownerID int64) (int64, error)
}

// Notifier enqueues notification email for the worker.
type Notifier interface {
	EnqueueNotification(ctx context.Context, payload jobs.NotificationPayload) (*asynq.TaskInfo, error)
}

// EventSink records audit events.
type EventSink interface {
	Record(ctx context.Context, ev shared.Event) error
}

// Service implements contact business rules, including per-user scope
// enforcement on top of the coarse route guard.
type Service struct {
	store  Store
	perms  *rbac.Service
	quotes QuoteCreator
	queue  Notifier
	events EventSink
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, perms *rbac.Service, quotes QuoteCreator, queue Notifier, events EventSink, logger *slog.Logger) *Service {
	return &Service{store: store, perms: perms, quotes: quotes, queue: queue, events: events, logger: logger}
}

// PublicSubmission is an unauthenticated contact-form submission.
type PublicSubmission struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,max=5"`
	Company     *string `json:"company" validate:"omitempty,max=255"`
	Quantity    *string `json:"quantity" validate:"omitempty,max=100"`
	Subject     *string `json:"subject" validate:"omitempty,max=200"`
	Message     string  `json:"message" validate:"required,max=5000"`
}

// SubmitPublic persists a website submission and queues the notification
// email. The row is the source of truth: a queue failure is logged, not
// surfaced, so the lead is never lost to a flaky broker.
func (s *Service) SubmitPublic(ctx context.Context, sub PublicSubmission) (int64, error) {
	subject := sub.Subject
	if subject == nil || *subject == "" {
		v := "General Inquiry"
		subject = &v
	}
	id, err := s.store.Insert(ctx, Contact{
		Name:        sub.Name,
		Email:       sub.Email,
		Phone:       sub.Phone,
		CountryCode: sub.CountryCode,
		Company:     sub.Company,
		Quantity:    sub.Quantity,
		Subject:     subject,
		Message:     sub.Message,
		Status:      StatusNew,
	})
	if err != nil {
		return 0, fmt.Errorf("insert contact: %w", err)
	}

	payload := jobs.NotificationPayload{
		Kind: jobs.NotificationContact,
		Submission: mail.Submission{
			Name:     sub.Name,
			Email:    sub.Email,
			Phone:    deref(sub.Phone),
			Company:  deref(sub.Company),
			Country:  deref(sub.CountryCode),
			Quantity: deref(sub.Quantity),
			Subject:  *subject,
			Message:  sub.Message,
		},
	}
	if _, err := s.queue.EnqueueNotification(ctx, payload); err != nil {
		s.logger.Error("enqueue contact notification",
			slog.Int64("contact_id", id), slog.Any("error", err))
	}
	return id, nil
}

// List returns contacts visible to the session user. OWN-scoped users only
// see rows they own; the narrowing happens in SQL and is re-checked on the
// result set.
func (s *Service) List(ctx context.Context, sess *shared.Session, f ListFilter) ([]Contact, shared.Pagination, error) {
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.HasPermission(perms, shared.ModuleContacts, shared.ActionRead, rbac.ScopeOwn) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	if !rbac.HasPermission(perms, shared.ModuleContacts, shared.ActionRead, rbac.ScopeAll) {
		f.OwnerID = &sess.UserID
	}

	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list contacts: %w", err)
	}
	list = rbac.FilterByScope(perms, shared.ModuleContacts, shared.ActionRead, list)
	return list, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// Get returns one contact, enforcing ownership for OWN-scoped users.
func (s *Service) Get(ctx context.Context, sess *shared.Session, id int64) (*Contact, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleContacts, shared.ActionRead, c.OwnerID) {
		return nil, shared.ErrForbidden
	}
	return c, nil
}

// CreateInput is a back-office contact creation request.
type CreateInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,max=5"`
	Company     *string `json:"company" validate:"omitempty,max=255"`
	Quantity    *string `json:"quantity" validate:"omitempty,max=100"`
	Subject     *string `json:"subject" validate:"omitempty,max=200"`
	Message     string  `json:"message" validate:"required,max=5000"`
	Status      string  `json:"status" validate:"omitempty,max=50"`
}

// Create inserts a contact owned by the session user.
func (s *Service) Create(ctx context.Context, sess *shared.Session, in CreateInput) (*Contact, error) {
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.HasPermission(perms, shared.ModuleContacts, shared.ActionCreate, rbac.ScopeOwn) {
		return nil, shared.ErrForbidden
	}

	status := in.Status
	if status == "" {
		status = StatusNew
	}
	owner := sess.UserID
	c := Contact{
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		CountryCode: in.CountryCode,
		Company:     in.Company,
		Quantity:    in.Quantity,
		Subject:     in.Subject,
		Message:     in.Message,
		Status:      status,
		OwnerID:     &owner,
	}
	id, err := s.store.Insert(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	c.ID = id
	s.recordEvent(ctx, "contact_created", id, sess.UserID, map[string]any{"contact": in})
	return &c, nil
}

// UpdateInput carries the updatable contact fields; nil means unchanged.
type UpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
	Company  *string `json:"company" validate:"omitempty,max=255"`
	Quantity *string `json:"quantity" validate:"omitempty,max=100"`
	Subject  *string `json:"subject" validate:"omitempty,max=200"`
	Message  *string `json:"message" validate:"omitempty,max=5000"`
	Status   *string `json:"status" validate:"omitempty,max=50"`
	OwnerID  *int64  `json:"owner_id"`
}

// Update applies partial changes, enforcing ownership for OWN-scoped users.
func (s *Service) Update(ctx context.Context, sess *shared.Session, id int64, in UpdateInput) (*Contact, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleContacts, shared.ActionUpdate, existing.OwnerID) {
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
	if in.Subject != nil {
		updates["subject"] = *in.Subject
	}
	if in.Message != nil {
		updates["message"] = *in.Message
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.OwnerID != nil {
		// Reassignment requires ALL scope; an OWN-scoped user handing a
		// contact to someone else would lose sight of it anyway.
		if !rbac.HasPermission(perms, shared.ModuleContacts, shared.ActionUpdate, rbac.ScopeAll) {
			return nil, shared.ErrForbidden
		}
		updates["owner_id"] = *in.OwnerID
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	s.recordEvent(ctx, "contact_updated", id, sess.UserID, map[string]any{"changes": in})
	return s.store.Get(ctx, id)
}

// Delete removes a contact, enforcing ownership for OWN-scoped users.
func (s *Service) Delete(ctx context.Context, sess *shared.Session, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleContacts, shared.ActionDelete, existing.OwnerID) {
		return shared.ErrForbidden
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	s.recordEvent(ctx, "contact_deleted", id, sess.UserID, nil)
	return nil
}

// Convert turns a contact into a quote request owned by the converting
// user and marks the contact converted. Follows the legacy flow: quote
// insert first, then the contact link, each step audited.
func (s *Service) Convert(ctx context.Context, sess *shared.Session, id int64) (int64, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	perms := s.perms.UserPermissions(ctx, sess.UserID)
	if !rbac.CanAccessResource(perms, shared.ModuleContacts, shared.ActionUpdate, existing.OwnerID) {
		return 0, shared.ErrForbidden
	}
	if existing.ConvertedToQuoteID != nil {
		return 0, ErrAlreadyConverted
	}

	quoteID, err := s.quotes.CreateFromContact(ctx, *existing, sess.UserID)
	if err != nil {
		return 0, fmt.Errorf("create quote from contact: %w", err)
	}
	if err := s.store.MarkConverted(ctx, id, quoteID); err != nil {
		return 0, fmt.Errorf("mark contact converted: %w", err)
	}

	s.recordEvent(ctx, "contact_converted", id, sess.UserID, map[string]any{"to_quote_id": quoteID})
	s.recordEventTable(ctx, "quote_created_from_contact", "quotes", quoteID, sess.UserID, map[string]any{"from_contact_id": id})
	return quoteID, nil
}

func (s *Service) recordEvent(ctx context.Context, eventType string, recordID, actorID int64, changes map[string]any) {
	s.recordEventTable(ctx, eventType, "contacts", recordID, actorID, changes)
}

func (s *Service) recordEventTable(ctx context.Context, eventType, table string, recordID, actorID int64, changes map[string]any) {
	if s.events == nil {
		return
	}
	ev := shared.Event{Type: eventType, Table: table, RecordID: recordID, ActorID: actorID, Changes: changes}
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
