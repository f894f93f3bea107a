package auth

import (
	"net/http"
	"time"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/kernel"
)

// ============================================================================
// Token Types
// ============================================================================

// TokenType discriminates full-session access tokens from project-scoped
// ones. A project token is only valid for its single project.
type TokenType string

const (
	TokenTypeAccess  TokenType = "ACCESS"
	TokenTypeProject TokenType = "PROJECT_ACCESS"
)

// RefreshToken is an opaque, stored refresh credential. At most one
// unrevoked token exists per user: issuing a new one revokes the rest.
type RefreshToken struct {
	ID        string        `db:"id" json:"id"`
	Token     string        `db:"token" json:"token"`
	UserID    kernel.UserID `db:"user_id" json:"user_id"`
	ExpiresAt time.Time     `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	IsRevoked bool          `db:"is_revoked" json:"is_revoked"`
}

// ProjectClaim is one project grant embedded in an access token.
type ProjectClaim struct {
	ProjectID kernel.ProjectID   `json:"projectId"`
	CustomID  string             `json:"customId"`
	Name      string             `json:"name"`
	Icon      string             `json:"icon,omitempty"`
	Role      kernel.ProjectRole `json:"role"`
	URL       string             `json:"url,omitempty"`
}

// TokenClaims is the decoded content of a verified token.
type TokenClaims struct {
	UserID    kernel.UserID     `json:"user_id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Role      kernel.SystemRole `json:"role"`
	TokenType TokenType         `json:"token_type"`
	// Projects carries the user's grants on ACCESS tokens.
	Projects []ProjectClaim `json:"projects,omitempty"`
	// ProjectID identifies the single project on PROJECT_ACCESS tokens.
	ProjectID kernel.ProjectID `json:"project_id,omitempty"`
	IssuedAt  time.Time        `json:"iat"`
	ExpiresAt time.Time        `json:"exp"`
}

// TokenPair is what login and refresh hand back to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// IsExpired checks if the refresh token has expired.
func (r *RefreshToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsValid checks if the refresh token can still be redeemed.
func (r *RefreshToken) IsValid() bool {
	return !r.IsRevoked && !r.IsExpired()
}

// IsProjectToken reports whether the claims came from a project-scoped
// token.
func (c *TokenClaims) IsProjectToken() bool {
	return c.TokenType == TokenTypeProject
}

// ============================================================================
// Audit
// ============================================================================

// AuditEntry is one recorded authentication or access event.
type AuditEntry struct {
	ID        string            `db:"id" json:"id"`
	UserID    kernel.UserID     `db:"user_id" json:"userId"`
	Action    string            `db:"action" json:"action"`
	ProjectID *kernel.ProjectID `db:"project_id" json:"projectId,omitempty"`
	Success   bool              `db:"success" json:"success"`
	IP        string            `db:"ip" json:"ip"`
	UserAgent string            `db:"user_agent" json:"userAgent"`
	Detail    string            `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
}

// Audit actions.
const (
	AuditLogin          = "LOGIN"
	AuditLogout         = "LOGOUT"
	AuditTokenRefresh   = "TOKEN_REFRESH"
	AuditProjectToken   = "PROJECT_TOKEN_ISSUED"
	AuditProjectAccess  = "PROJECT_ACCESS"
	AuditTokenValidated = "TOKEN_VALIDATED"
	// AuditMainTokenValidated marks a validation of a main access token,
	// as opposed to a project-scoped one.
	AuditMainTokenValidated = "MAIN_TOKEN_VALIDATED"
	AuditAccessChecked      = "ACCESS_CHECKED"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidRefreshToken   = ErrRegistry.Register("INVALID_REFRESH_TOKEN", errx.TypeAuthentication, http.StatusUnauthorized, "Invalid refresh token")
	CodeExpiredRefreshToken   = ErrRegistry.Register("EXPIRED_REFRESH_TOKEN", errx.TypeAuthentication, http.StatusUnauthorized, "Expired refresh token")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthentication, http.StatusUnauthorized, "Token validation failed")
	CodeWrongTokenType        = ErrRegistry.Register("WRONG_TOKEN_TYPE", errx.TypeAuthentication, http.StatusUnauthorized, "Wrong token type for this operation")
	CodeMissingToken          = ErrRegistry.Register("MISSING_TOKEN", errx.TypeAuthentication, http.StatusUnauthorized, "Authentication token required")
)

// Helper functions
func ErrInvalidRefreshToken() *errx.Error   { return ErrRegistry.New(CodeInvalidRefreshToken) }
func ErrExpiredRefreshToken() *errx.Error   { return ErrRegistry.New(CodeExpiredRefreshToken) }
func ErrTokenGenerationFailed() *errx.Error { return ErrRegistry.New(CodeTokenGenerationFailed) }
func ErrTokenValidationFailed() *errx.Error { return ErrRegistry.New(CodeTokenValidationFailed) }
func ErrWrongTokenType() *errx.Error        { return ErrRegistry.New(CodeWrongTokenType) }
func ErrMissingToken() *errx.Error          { return ErrRegistry.New(CodeMissingToken) }
