package models

// Principal is the authenticated caller attached to every request by the
// (out of scope) transport/auth layer. The core never reads a
// tenant_id from a request body — every operation takes a Principal and
// derives tenant scoping from it exclusively.
type Principal struct {
	TenantID string
	UserID   string
	Roles    []string
	Scopes   []string
}

// HasRole reports whether the principal carries the named role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasScope reports whether the principal carries the named scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Approver roles required by the edit overlay for retract/block (§4.3).
const RoleApprover = "memory_approver"

// RoleAdmin is required for audit log reads. Store.PurgeTenant does no
// role check of its own.
const RoleAdmin = "tenant_admin"
