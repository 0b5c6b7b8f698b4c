package domain

// Role is the access level attached to a user account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every assignable role, lowest privilege first.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether r bypasses ownership checks on reviews and comments.
func (r Role) Elevated() bool {
	return r == RoleModerator || r == RoleAdmin
}
