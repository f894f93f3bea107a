package usersrv

import (
	"context"

	"github.com/xtown/projecthub/pkg/iam/otp"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
)

// OTPService issues and verifies single-use codes.
type OTPService interface {
	Generate(ctx context.Context, email string, purpose otp.Purpose) (*otp.OTP, error)
	Verify(ctx context.Context, email, code string, purpose otp.Purpose) (*otp.OTP, error)
}

// TokenRevoker invalidates a user's refresh tokens after credential
// changes.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID kernel.UserID) error
}

// Mailer sends non-OTP account emails. May be nil to disable.
type Mailer interface {
	SendWelcome(ctx context.Context, u *user.User) error
}

// UserService implements account lifecycle and administration.
type UserService struct {
	repo            user.Repository
	passwords       user.PasswordService
	otps            OTPService
	tokens          TokenRevoker
	grants          GrantManager
	mailer          Mailer
	defaultSubLimit int
}

// NewUserService creates a user service. mailer may be nil.
func NewUserService(
	repo user.Repository,
	passwords user.PasswordService,
	otps OTPService,
	tokens TokenRevoker,
	grants GrantManager,
	mailer Mailer,
	defaultSubUserLimit int,
) *UserService {
	return &UserService{
		repo:            repo,
		passwords:       passwords,
		otps:            otps,
		tokens:          tokens,
		grants:          grants,
		mailer:          mailer,
		defaultSubLimit: defaultSubUserLimit,
	}
}

const minPasswordLength = 8

func (s *UserService) validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return user.ErrWeakPassword()
	}
	return nil
}
