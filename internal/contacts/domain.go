// Package contacts manages website contact-form submissions and their
// lifecycle in the back office, up to conversion into a quote request.
package contacts

import "time"

// Contact statuses. The column is free text in the schema; these are the
// values the back office writes.
const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusConverted  = "converted"
	StatusClosed     = "closed"
)

// Contact is a contact-form submission row.
type Contact struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              *string   `json:"phone"`
	CountryCode        *string   `json:"country_code"`
	Company            *string   `json:"company"`
	Quantity           *string   `json:"quantity"`
	Subject            *string   `json:"subject"`
	Message            string    `json:"message"`
	Status             string    `json:"status"`
	OwnerID            *int64    `json:"owner_id"`
	ConvertedToQuoteID *int64    `json:"converted_to_quote_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ResourceOwner implements rbac.Owned. Public submissions have no owner
// until a salesperson picks them up.
func (c Contact) ResourceOwner() *int64 {
	return c.OwnerID
}

// ListFilter narrows List queries. OwnerID is set by the service when the
// caller only holds OWN scope; it is never taken from request input.
type ListFilter struct {
	Status  string
	From    *time.Time
	To      *time.Time
	Search  string
	OwnerID *int64
	Page    int
	PerPage int
}
