package auth

import (
	"context"

	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

// TokenRepository defines the contract for refresh token persistence.
type TokenRepository interface {
	// Rotate revokes every live token of the user and stores the new one,
	// atomically.
	Rotate(ctx context.Context, token RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenValue string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenValue string) error
	RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error
	CleanExpiredTokens(ctx context.Context) (int64, error)
}

// TokenService defines the contract for signed token management.
type TokenService interface {
	GenerateAccessToken(u *user.User, projects []ProjectClaim) (string, error)
	GenerateProjectToken(u *user.User, claim ProjectClaim) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	ValidateProjectToken(token string) (*TokenClaims, error)
}

// AuditRepository persists authentication and access events.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
	ListByUser(ctx context.Context, userID kernel.UserID, limit int) ([]AuditEntry, error)
}

// RateLimiter throttles requests by key. Allow returns whether the call
// may proceed and how many attempts remain in the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}
