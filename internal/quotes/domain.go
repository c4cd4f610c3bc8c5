// Package quotes manages quote requests from the website and the back
// office pipeline that turns them into sales.
package quotes

import "time"

// Quote statuses.
const (
	StatusPending  = "pending"
	StatusInReview = "in_review"
	StatusSent     = "sent"
	StatusWon      = "won"
	StatusLost     = "lost"
	StatusArchived = "archived"
)

// ValidStatus reports whether s is a known quote status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInReview, StatusSent, StatusWon, StatusLost, StatusArchived:
		return true
	}
	return false
}

// Quote is a quote request row.
type Quote struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          *string   `json:"phone"`
	CountryCode    *string   `json:"country_code"`
	Company        *string   `json:"company"`
	Quantity       *string   `json:"quantity"`
	Product        *string   `json:"product"`
	Message        *string   `json:"message"`
	Status         string    `json:"status"`
	OwnerID        *int64    `json:"owner_id"`
	EstimatedValue float64   `json:"estimated_value"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ResourceOwner implements rbac.Owned.
func (q Quote) ResourceOwner() *int64 {
	return q.OwnerID
}

// ListFilter narrows List queries. ScopeOwnerID is set by the service for
// OWN-scoped callers; OwnerID is an explicit query filter.
type ListFilter struct {
	Status       string
	OwnerID      *int64
	ScopeOwnerID *int64
	CountryCode  string
	From         *time.Time
	To           *time.Time
	Search       string
	Page         int
	PerPage      int
}
