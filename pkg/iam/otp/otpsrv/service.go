package otpsrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/otp"
	"github.com/xtown/projecthub/pkg/logx"
)

// NotificationService delivers OTP codes to users.
type NotificationService interface {
	SendOTP(ctx context.Context, email, code string, purpose otp.Purpose) error
}

// OTPService issues and verifies single-use codes.
type OTPService struct {
	repo         otp.Repository
	notifier     NotificationService
	ttl          time.Duration
	resendWindow time.Duration
}

// NewOTPService creates an OTP service. ttl is how long issued codes stay
// valid, resendWindow is the minimum gap between two codes for the same
// email and purpose.
func NewOTPService(repo otp.Repository, notifier NotificationService, ttl, resendWindow time.Duration) *OTPService {
	return &OTPService{
		repo:         repo,
		notifier:     notifier,
		ttl:          ttl,
		resendWindow: resendWindow,
	}
}

// Generate issues a new code for the email and purpose, superseding any
// unused prior codes, and delivers it through the notifier.
func (s *OTPService) Generate(ctx context.Context, email string, purpose otp.Purpose) (*otp.OTP, error) {
	if !purpose.Valid() {
		return nil, otp.ErrInvalidPurpose().WithDetail("purpose", string(purpose))
	}

	recent, err := s.HasRecent(ctx, email, purpose)
	if err != nil {
		return nil, err
	}
	if recent {
		return nil, otp.ErrTooManyRequests().
			WithDetail("retry_after_seconds", int(s.resendWindow.Seconds()))
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, errx.Wrap(err, "failed to generate OTP code", errx.TypeInternal)
	}

	// At most one live code per (email, purpose): older unused codes are
	// invalidated before the new one is stored.
	if err := s.repo.DeleteUnused(ctx, email, purpose); err != nil {
		return nil, err
	}

	now := time.Now()
	newOTP := &otp.OTP{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, newOTP); err != nil {
		return nil, err
	}

	if err := s.notifier.SendOTP(ctx, email, code, purpose); err != nil {
		return nil, errx.Wrap(err, "failed to send OTP", errx.TypeExternal)
	}

	return newOTP, nil
}

// Verify consumes the code matching email, code and purpose. Any failure
// yields the same generic error regardless of cause.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose otp.Purpose) (*otp.OTP, error) {
	found, err := s.repo.GetUsable(ctx, email, code, purpose)
	if err != nil {
		return nil, err
	}
	if found == nil || !found.IsUsable() {
		return nil, otp.ErrInvalidOTP()
	}

	if err := s.repo.MarkUsed(ctx, found.ID); err != nil {
		return nil, err
	}
	found.Used = true
	return found, nil
}

// HasRecent reports whether a code for the email and purpose was issued
// within the resend window.
func (s *OTPService) HasRecent(ctx context.Context, email string, purpose otp.Purpose) (bool, error) {
	latest, err := s.repo.GetLatest(ctx, email, purpose)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	return time.Since(latest.CreatedAt) < s.resendWindow, nil
}

// CleanupExpired removes codes whose validity window has passed.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logx.WithFields(logx.Fields{"removed": removed}).Info("otp: expired codes cleaned up")
	}
	return removed, nil
}
