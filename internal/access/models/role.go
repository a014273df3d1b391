// Package models defines the role vocabulary for dispensary staff and
// patients.
package models

import "fmt"

// Role is a named permission tier attached to a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleRootAdmin Role = "root_admin"
)

// ParseRole validates a stored role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleModerator, RoleAdmin, RoleRootAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsAdmin reports whether the role carries full administrative privileges.
// Root admins are a superset of admins everywhere in the system.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleRootAdmin
}

// IsModerator reports whether the role carries moderation privileges.
func (r Role) IsModerator() bool {
	return r == RoleModerator || r.IsAdmin()
}
