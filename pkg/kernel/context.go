package kernel

import "context"

// AuthContext carries the authenticated caller through a request.
type AuthContext struct {
	UserID UserID
	Email  string
	Name   string
	Role   SystemRole
}

// IsSuperAdmin reports whether the caller holds the platform super admin role.
func (a AuthContext) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

// IsAdmin reports whether the caller is a project admin.
func (a AuthContext) IsAdmin() bool { return a.Role == RoleAdmin }

// CanManageUsers reports whether the caller may create or modify accounts.
func (a AuthContext) CanManageUsers() bool {
	return a.Role == RoleSuperAdmin || a.Role == RoleAdmin
}

type authContextKey struct{}

// WithAuthContext attaches an AuthContext to ctx.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext extracts the AuthContext, if present.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// LocalsAuthKey is the fiber Locals key the auth middleware stores the
// AuthContext under.
const LocalsAuthKey = "auth"
