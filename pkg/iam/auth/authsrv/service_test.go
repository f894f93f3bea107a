package authsrv

import (
	"context"
	"testing"
	"time"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

type fakeTokenRepo struct {
	tokens []*auth.RefreshToken
}

func (r *fakeTokenRepo) Rotate(_ context.Context, token auth.RefreshToken) error {
	for _, t := range r.tokens {
		if t.UserID == token.UserID && !t.IsRevoked {
			t.IsRevoked = true
		}
	}
	cp := token
	r.tokens = append(r.tokens, &cp)
	return nil
}

func (r *fakeTokenRepo) FindRefreshToken(_ context.Context, tokenValue string) (*auth.RefreshToken, error) {
	for _, t := range r.tokens {
		if t.Token == tokenValue {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepo) RevokeRefreshToken(_ context.Context, tokenValue string) error {
	for _, t := range r.tokens {
		if t.Token == tokenValue {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeTokenRepo) RevokeAllUserTokens(_ context.Context, userID kernel.UserID) error {
	for _, t := range r.tokens {
		if t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeTokenRepo) CleanExpiredTokens(_ context.Context) (int64, error) {
	var removed int64
	kept := r.tokens[:0]
	for _, t := range r.tokens {
		if t.IsExpired() {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return removed, nil
}

func (r *fakeTokenRepo) liveCount(userID kernel.UserID) int {
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsValid() {
			n++
		}
	}
	return n
}

type fakeUsers struct {
	users map[kernel.UserID]*user.User
}

func (f *fakeUsers) GetByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	cp := *u
	return &cp, nil
}

// Unused Repository methods.
func (f *fakeUsers) Create(context.Context, *user.User) error { return nil }
func (f *fakeUsers) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrUserNotFound()
}
func (f *fakeUsers) List(context.Context, user.ListFilter) ([]*user.User, error) { return nil, nil }
func (f *fakeUsers) Update(context.Context, *user.User) error                    { return nil }
func (f *fakeUsers) DeleteCascade(context.Context, kernel.UserID) error          { return nil }
func (f *fakeUsers) SuperAdminExists(context.Context) (bool, error)              { return false, nil }
func (f *fakeUsers) CountSubUsers(context.Context, kernel.UserID) (int, error)   { return 0, nil }
func (f *fakeUsers) CountByRole(context.Context, kernel.SystemRole) (int, error) { return 0, nil }
func (f *fakeUsers) UpdateLastLogin(context.Context, kernel.UserID) error        { return nil }
func (f *fakeUsers) CreateWithGrants(context.Context, *user.User, []*project.UserProject) error {
	return nil
}

type fakeGrantViews struct {
	views map[kernel.UserID][]project.GrantView
}

func (f *fakeGrantViews) ListActiveByUser(_ context.Context, userID kernel.UserID) ([]project.GrantView, error) {
	return f.views[userID], nil
}

func (f *fakeGrantViews) Upsert(context.Context, *project.UserProject) error { return nil }
func (f *fakeGrantViews) GetActive(context.Context, kernel.UserID, kernel.ProjectID) (*project.UserProject, error) {
	return nil, nil
}
func (f *fakeGrantViews) ListByProject(context.Context, kernel.ProjectID) ([]*project.UserProject, error) {
	return nil, nil
}
func (f *fakeGrantViews) DeactivateAllForUser(context.Context, kernel.UserID) error { return nil }
func (f *fakeGrantViews) ReplaceForUser(context.Context, kernel.UserID, []*project.UserProject) error {
	return nil
}
func (f *fakeGrantViews) TouchLastAccessed(context.Context, string) error { return nil }
func (f *fakeGrantViews) CountActiveByProject(context.Context, kernel.ProjectID) (int, error) {
	return 0, nil
}

func newAuthTestEnv(u *user.User) (*AuthService, *fakeTokenRepo) {
	tokens := &fakeTokenRepo{}
	users := &fakeUsers{users: map[kernel.UserID]*user.User{u.ID: u}}
	grants := &fakeGrantViews{views: map[kernel.UserID][]project.GrantView{}}
	jwt := auth.NewJWTService("test-secret", time.Hour, time.Hour, "test")
	svc := NewAuthService(jwt, tokens, users, grants, time.Hour, 24*time.Hour)
	return svc, tokens
}

func activeUser() *user.User {
	return &user.User{
		ID:       kernel.UserID("u-1"),
		Email:    "a@example.com",
		Role:     kernel.RoleAdmin,
		IsActive: true,
	}
}

func TestIssueTokensKeepsSingleLiveRefreshToken(t *testing.T) {
	u := activeUser()
	svc, tokens := newAuthTestEnv(u)
	ctx := context.Background()

	first, err := svc.IssueTokens(ctx, u)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := svc.IssueTokens(ctx, u)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if tokens.liveCount(u.ID) != 1 {
		t.Fatalf("live tokens = %d, want 1", tokens.liveCount(u.ID))
	}
	if _, _, err := svc.Refresh(ctx, first.RefreshToken); !errx.IsCode(err, auth.CodeInvalidRefreshToken) {
		t.Fatalf("superseded refresh token still redeemable: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("current refresh token rejected: %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	u := activeUser()
	svc, _ := newAuthTestEnv(u)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	next, _, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// The redeemed token is dead after rotation.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("old refresh token redeemed twice")
	}
}

func TestRefreshRejectsUnknownAndExpired(t *testing.T) {
	u := activeUser()
	svc, tokens := newAuthTestEnv(u)
	ctx := context.Background()

	if _, _, err := svc.Refresh(ctx, "no-such-token"); !errx.IsCode(err, auth.CodeInvalidRefreshToken) {
		t.Fatalf("unknown token: %v", err)
	}

	tokens.tokens = append(tokens.tokens, &auth.RefreshToken{
		ID: "t-old", Token: "expired-token", UserID: u.ID,
		ExpiresAt: time.Now().Add(-time.Minute), CreatedAt: time.Now().Add(-25 * time.Hour),
	})
	if _, _, err := svc.Refresh(ctx, "expired-token"); !errx.IsCode(err, auth.CodeExpiredRefreshToken) {
		t.Fatalf("expired token: %v", err)
	}
}

func TestRefreshRechecksAccountState(t *testing.T) {
	u := activeUser()
	svc, _ := newAuthTestEnv(u)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	u.Suspend("fraud", kernel.UserID("admin"))
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errx.IsCode(err, user.CodeSuspended) {
		t.Fatalf("suspended user refreshed: %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	u := activeUser()
	svc, _ := newAuthTestEnv(u)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("refresh after logout succeeded")
	}
}
