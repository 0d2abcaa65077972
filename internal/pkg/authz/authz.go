// internal/pkg/authz/authz.go
package authz

import (
	"pressroom-service/internal/domain/auth"
)

// Coarse role tags assigned by the publishing platform.
const (
	RoleAdmin      = "ADMIN"
	RoleEditor     = "EDITOR"
	RoleJournalist = "JOURNALIST"
	RolePublisher  = "PUBLISHER"
)

// Decision is the outcome of a composite access check. A denial names the
// first failed conjunct so callers can show a specific forbidden message.
type Decision int

const (
	Granted Decision = iota
	DeniedSite
	DeniedRole
	DeniedPermission
)

func (d Decision) Allowed() bool { return d == Granted }

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case DeniedSite:
		return "denied: wrong or missing site"
	case DeniedRole:
		return "denied: insufficient role"
	case DeniedPermission:
		return "denied: missing permission"
	default:
		return "denied"
	}
}

// Requirement describes what an action needs: the site it belongs to, at
// least one of the allowed roles, and a capability permission. Empty fields
// impose no constraint.
type Requirement struct {
	Site       string
	Roles      []string
	Permission string
}

// HasRole reports role membership. A nil user has no roles.
func HasRole(u *auth.UserInfo, role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the roles.
func HasAnyRole(u *auth.UserInfo, roles []string) bool {
	for _, role := range roles {
		if HasRole(u, role) {
			return true
		}
	}
	return false
}

// HasPermission reports capability membership. A nil user has none.
func HasPermission(u *auth.UserInfo, permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin is a convenience check for the admin role.
func IsAdmin(u *auth.UserInfo) bool {
	return HasRole(u, RoleAdmin)
}

// Evaluate runs the composite site/role/permission check, short-circuiting
// in order of cheapness: site compare, then role set, then permission set.
// The order does not change the result, only which denial is reported.
func Evaluate(u *auth.UserInfo, selectedSite string, req Requirement) Decision {
	if req.Site != "" && selectedSite != req.Site {
		return DeniedSite
	}
	if len(req.Roles) > 0 && !HasAnyRole(u, req.Roles) {
		return DeniedRole
	}
	if req.Permission != "" && !HasPermission(u, req.Permission) {
		return DeniedPermission
	}
	return Granted
}
