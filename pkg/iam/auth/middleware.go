package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

// UserLoader is the slice of the user repository the middleware needs to
// re-check accounts on every request.
type UserLoader interface {
	GetByID(ctx context.Context, id kernel.UserID) (*user.User, error)
}

// TokenMiddleware authenticates requests and enforces role requirements.
type TokenMiddleware struct {
	tokenService TokenService
	users        UserLoader
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(tokenService TokenService, users UserLoader) *TokenMiddleware {
	return &TokenMiddleware{
		tokenService: tokenService,
		users:        users,
	}
}

// Authenticate validates the bearer token and loads the live account, so
// suspension or deletion takes effect before the token expires.
func (am *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return ErrMissingToken()
		}

		claims, err := am.tokenService.ValidateAccessToken(token)
		if err != nil {
			return err
		}

		u, err := am.users.GetByID(c.Context(), claims.UserID)
		if err != nil {
			return ErrTokenValidationFailed()
		}
		if !u.IsActive {
			return user.ErrNotActivated()
		}
		if u.IsSuspended {
			return user.ErrSuspended().WithDetail("reason", u.SuspendedReason)
		}

		c.Locals(kernel.LocalsAuthKey, kernel.AuthContext{
			UserID: u.ID,
			Email:  u.Email,
			Name:   u.FullName(),
			Role:   u.Role,
		})
		return c.Next()
	}
}

// RequireSuperAdmin allows only the platform owner through.
func (am *TokenMiddleware) RequireSuperAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth, ok := AuthFromFiber(c)
		if !ok {
			return ErrMissingToken()
		}
		if !auth.IsSuperAdmin() {
			return user.ErrCannotModify().WithMessage("Super admin access required")
		}
		return c.Next()
	}
}

// RequireAdmin allows admins and the super admin through.
func (am *TokenMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth, ok := AuthFromFiber(c)
		if !ok {
			return ErrMissingToken()
		}
		if !auth.CanManageUsers() {
			return user.ErrCannotModify().WithMessage("Admin access required")
		}
		return c.Next()
	}
}

// AuthFromFiber extracts the AuthContext stored by Authenticate.
func AuthFromFiber(c *fiber.Ctx) (kernel.AuthContext, bool) {
	auth, ok := c.Locals(kernel.LocalsAuthKey).(kernel.AuthContext)
	return auth, ok
}

// BearerToken pulls the caller's token from the Authorization header,
// falling back to the access_token cookie.
func BearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1]
		}
	}
	return c.Cookies("access_token")
}
