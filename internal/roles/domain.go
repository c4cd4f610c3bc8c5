// Package roles manages roles and their permission grants.
package roles

import "github.com/meridianpack/backoffice/internal/rbac"

// Role is a roles-table row with its permission triples attached.
type Role struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Permissions []rbac.Permission `json:"permissions"`
}
