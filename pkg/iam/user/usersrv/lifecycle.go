package usersrv

import (
	"context"
	"time"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/otp"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/logx"
)

// RegisterSuperAdminInput carries the initial platform owner registration.
type RegisterSuperAdminInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Phone          string
	Company        string
	CompanyAddress string
	CompanyPhone   string
}

// RegisterSuperAdmin starts registration of the platform's single
// SUPER_ADMIN account. Nothing is persisted at this stage: the call
// only checks that registration is possible and sends the OTP, so an
// abandoned registration can simply be retried. The account itself is
// created by VerifyRegistration.
func (s *UserService) RegisterSuperAdmin(ctx context.Context, input RegisterSuperAdminInput) error {
	exists, err := s.repo.SuperAdminExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return user.ErrSuperAdminExists()
	}

	email := user.NormalizeEmail(input.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return user.ErrDuplicateEmail().WithDetail("email", email)
	} else if !errx.IsCode(err, user.CodeUserNotFound) {
		return err
	}

	if err := s.validatePassword(input.Password); err != nil {
		return err
	}

	if _, err := s.otps.Generate(ctx, email, otp.PurposeRegistration); err != nil {
		return err
	}

	logx.WithFields(logx.Fields{"email": email}).Info("super admin registration started")
	return nil
}

// VerifyRegistration consumes the registration OTP and creates the
// SUPER_ADMIN account, already active, from the re-supplied identity
// fields. The singleton check runs again here; a concurrent second
// verification is caught by the repository's uniqueness guard.
func (s *UserService) VerifyRegistration(ctx context.Context, input RegisterSuperAdminInput, code string) (*user.User, error) {
	email := user.NormalizeEmail(input.Email)
	if _, err := s.otps.Verify(ctx, email, code, otp.PurposeRegistration); err != nil {
		return nil, err
	}

	exists, err := s.repo.SuperAdminExists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, user.ErrSuperAdminExists()
	}

	if err := s.validatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &user.User{
		ID:             kernel.NewUserID(),
		Email:          email,
		PasswordHash:   hash,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Phone:          input.Phone,
		Company:        input.Company,
		CompanyAddress: input.CompanyAddress,
		CompanyPhone:   input.CompanyPhone,
		Role:           kernel.RoleSuperAdmin,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{"user_id": u.ID.String()}).Info("super admin registered")
	s.sendWelcome(ctx, u)
	return u, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords produce the same error; inactive and suspended accounts get
// distinct ones.
func (s *UserService) Login(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.repo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errx.IsCode(err, user.CodeUserNotFound) {
			return nil, user.ErrInvalidCredentials()
		}
		return nil, err
	}

	if !s.passwords.Verify(u.PasswordHash, password) {
		return nil, user.ErrInvalidCredentials()
	}
	if !u.IsActive {
		return nil, user.ErrNotActivated()
	}
	if u.IsSuspended {
		return nil, user.ErrSuspended().WithDetail("reason", u.SuspendedReason)
	}

	if err := s.repo.UpdateLastLogin(ctx, u.ID); err != nil {
		logx.WithError(err).Warn("failed to stamp last login")
	}
	return u, nil
}

// SendActivationOTP issues an activation code to a not-yet-active account.
func (s *UserService) SendActivationOTP(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if u.IsActive {
		return user.ErrAlreadyActive()
	}

	_, err = s.otps.Generate(ctx, u.Email, otp.PurposeAccountActivation)
	return err
}

// Activate consumes the activation OTP and turns the account on.
func (s *UserService) Activate(ctx context.Context, email, code string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if _, err := s.otps.Verify(ctx, email, code, otp.PurposeAccountActivation); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.IsActive {
		return nil, user.ErrAlreadyActive()
	}

	u.IsActive = true
	u.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, u)
	return u, nil
}

// ForgotPassword issues a reset OTP. Unknown emails are ignored so the
// endpoint does not reveal which accounts exist.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errx.IsCode(err, user.CodeUserNotFound) {
			return nil
		}
		return err
	}
	if !u.CanLogin() {
		return nil
	}

	_, err = s.otps.Generate(ctx, u.Email, otp.PurposeForgotPassword)
	return err
}

// ResetPassword consumes the reset OTP, replaces the password and revokes
// every live refresh token of the account.
func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = user.NormalizeEmail(email)
	if _, err := s.otps.Verify(ctx, email, code, otp.PurposeForgotPassword); err != nil {
		return err
	}

	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return err
	}

	logx.WithFields(logx.Fields{"user_id": u.ID.String()}).Info("password reset completed")
	return nil
}

// SuperAdminExists reports whether the platform owner account exists,
// used by setup screens to decide whether to show registration.
func (s *UserService) SuperAdminExists(ctx context.Context) (bool, error) {
	return s.repo.SuperAdminExists(ctx)
}

func (s *UserService) sendWelcome(ctx context.Context, u *user.User) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendWelcome(ctx, u); err != nil {
		logx.WithError(err).WithField("user_id", u.ID.String()).Warn("failed to send welcome email")
	}
}
