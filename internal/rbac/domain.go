package rbac

import "fmt"

// Scope qualifies a permission grant: every resource in a module, or only
// resources owned by the caller. The set is closed; anything else is
// rejected at parse time instead of silently falling through to deny.
type Scope string

const (
	// ScopeAll grants access regardless of resource ownership.
	ScopeAll Scope = "ALL"
	// ScopeOwn grants access only to resources owned by the caller.
	ScopeOwn Scope = "OWN"
)

// ParseScope validates a stored scope value.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAll:
		return ScopeAll, nil
	case ScopeOwn:
		return ScopeOwn, nil
	default:
		return "", fmt.Errorf("rbac: unknown scope %q", s)
	}
}

// Permission is an atomic capability: a (module, action, scope) triple.
// Module and action match call sites by exact string equality; casing
// differences between the database and call sites deny access.
type Permission struct {
	ID     int64  `json:"id"`
	Module string `json:"module"`
	Action string `json:"action"`
	Scope  Scope  `json:"scope"`
}

// UserPermissions aggregates a user's resolved grants for one request.
type UserPermissions struct {
	UserID      int64
	Role        string
	Permissions []Permission
}

// Owned is implemented by resources that carry an owner reference.
type Owned interface {
	ResourceOwner() *int64
}

// HasPermission reports whether any grant matches module and action at the
// requested scope. A stored ALL grant satisfies any requested scope; a
// stored OWN grant satisfies only a requested OWN.
func HasPermission(up *UserPermissions, module, action string, scope Scope) bool {
	if up == nil {
		return false
	}
	for _, p := range up.Permissions {
		if p.Module != module || p.Action != action {
			continue
		}
		if p.Scope == ScopeAll || p.Scope == scope {
			return true
		}
	}
	return false
}

// CanAccessResource reports whether the user may act on a single resource.
// With only an OWN grant, a nil owner denies: unknown ownership never
// equals the caller.
func CanAccessResource(up *UserPermissions, module, action string, ownerID *int64) bool {
	if HasPermission(up, module, action, ScopeAll) {
		return true
	}
	if HasPermission(up, module, action, ScopeOwn) {
		return ownerID != nil && *ownerID == up.UserID
	}
	return false
}

// FilterByScope applies row-level visibility to an already-fetched list:
// everything under an ALL grant, owned rows under an OWN grant, nothing
// otherwise.
func FilterByScope[T Owned](up *UserPermissions, module, action string, items []T) []T {
	if HasPermission(up, module, action, ScopeAll) {
		return items
	}
	if !HasPermission(up, module, action, ScopeOwn) {
		return []T{}
	}
	owned := make([]T, 0, len(items))
	for _, item := range items {
		if owner := item.ResourceOwner(); owner != nil && *owner == up.UserID {
			owned = append(owned, item)
		}
	}
	return owned
}
