package authsrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/logx"
)

// AuthService issues, refreshes and revokes token pairs.
type AuthService struct {
	jwt             auth.TokenService
	tokens          auth.TokenRepository
	users           user.Repository
	grants          project.GrantRepository
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewAuthService creates an auth service.
func NewAuthService(
	jwt auth.TokenService,
	tokens auth.TokenRepository,
	users user.Repository,
	grants project.GrantRepository,
	accessTokenTTL, refreshTokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		jwt:             jwt,
		tokens:          tokens,
		users:           users,
		grants:          grants,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// ProjectClaims builds the grant snapshot embedded in access tokens.
func (s *AuthService) ProjectClaims(ctx context.Context, userID kernel.UserID) ([]auth.ProjectClaim, error) {
	views, err := s.grants.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	claims := make([]auth.ProjectClaim, len(views))
	for i, v := range views {
		claims[i] = auth.ProjectClaim{
			ProjectID: v.Project.ID,
			CustomID:  v.Project.CustomID,
			Name:      v.Project.Name,
			Icon:      v.Project.Icon,
			Role:      v.Grant.Role,
			URL:       redirectURL(v),
		}
	}
	return claims, nil
}

// redirectURL prefers the grant's per-user override over the project
// default.
func redirectURL(v project.GrantView) string {
	if v.Grant.ProjectURL != "" {
		return v.Grant.ProjectURL
	}
	return v.Project.URL
}

// IssueTokens creates an access token plus a fresh opaque refresh token.
// Rotation revokes every other live refresh token of the user, so one
// session per account holds a redeemable token.
func (s *AuthService) IssueTokens(ctx context.Context, u *user.User) (*auth.TokenPair, error) {
	claims, err := s.ProjectClaims(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(u, claims)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	refresh := auth.RefreshToken{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.refreshTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Rotate(ctx, refresh); err != nil {
		return nil, err
	}

	return &auth.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}

// Refresh redeems a refresh token for a new pair. The account is
// re-checked so suspended users cannot refresh their way back in.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, *user.User, error) {
	stored, err := s.tokens.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if stored == nil || stored.IsRevoked {
		return nil, nil, auth.ErrInvalidRefreshToken()
	}
	if stored.IsExpired() {
		return nil, nil, auth.ErrExpiredRefreshToken()
	}

	u, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, nil, auth.ErrInvalidRefreshToken()
	}
	if !u.IsActive {
		return nil, nil, user.ErrNotActivated()
	}
	if u.IsSuspended {
		return nil, nil, user.ErrSuspended().WithDetail("reason", u.SuspendedReason)
	}

	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	logx.WithFields(logx.Fields{"user_id": u.ID.String()}).Debug("refresh token rotated")
	return pair, u, nil
}

// Logout revokes the presented refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// RevokeAllForUser invalidates every refresh token of an account. Used
// after password resets and suspensions.
func (s *AuthService) RevokeAllForUser(ctx context.Context, userID kernel.UserID) error {
	return s.tokens.RevokeAllUserTokens(ctx, userID)
}

// CleanupExpired removes expired refresh tokens.
func (s *AuthService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokens.CleanExpiredTokens(ctx)
}
