package kernel

// SystemRole is the platform-level role of a user account.
type SystemRole string

const (
	RoleSuperAdmin SystemRole = "SUPER_ADMIN"
	RoleAdmin      SystemRole = "ADMIN"
	RoleSubUser    SystemRole = "SUB_USER"
)

// Valid reports whether the role is one of the known system roles.
func (r SystemRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSubUser:
		return true
	}
	return false
}

// ProjectRole is a user's role within a single project grant.
type ProjectRole string

const (
	ProjectRoleViewer ProjectRole = "VIEWER"
	ProjectRoleMember ProjectRole = "MEMBER"
	ProjectRoleAdmin  ProjectRole = "ADMIN"
	ProjectRoleOwner  ProjectRole = "OWNER"
)

var projectRoleRank = map[ProjectRole]int{
	ProjectRoleViewer: 1,
	ProjectRoleMember: 2,
	ProjectRoleAdmin:  3,
	ProjectRoleOwner:  4,
}

// Valid reports whether the role is one of the known project roles.
func (r ProjectRole) Valid() bool {
	_, ok := projectRoleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of min.
func (r ProjectRole) AtLeast(min ProjectRole) bool {
	return projectRoleRank[r] >= projectRoleRank[min]
}
