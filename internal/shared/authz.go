package shared

// Permission modules. Values must match the permissions table exactly;
// matching is case sensitive.
const (
	ModuleContacts = "CONTACTS"
	ModuleQuotes   = "QUOTES"
	ModuleUsers    = "USERS"
	ModuleRoles    = "ROLES"
)

// Permission actions.
const (
	ActionRead   = "READ"
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Modules lists every permission module known to the back office.
func Modules() []string {
	return []string{ModuleContacts, ModuleQuotes, ModuleUsers, ModuleRoles}
}

// Actions lists every permission action.
func Actions() []string {
	return []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
}
