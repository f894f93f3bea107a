package otpsrv

import (
	"context"
	"testing"
	"time"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam/otp"
)

type fakeOTPRepo struct {
	otps []*otp.OTP
}

func (r *fakeOTPRepo) Create(_ context.Context, o *otp.OTP) error {
	cp := *o
	r.otps = append(r.otps, &cp)
	return nil
}

func (r *fakeOTPRepo) DeleteUnused(_ context.Context, email string, purpose otp.Purpose) error {
	kept := r.otps[:0]
	for _, o := range r.otps {
		if o.Email == email && o.Purpose == purpose && !o.Used {
			continue
		}
		kept = append(kept, o)
	}
	r.otps = kept
	return nil
}

func (r *fakeOTPRepo) GetUsable(_ context.Context, email, code string, purpose otp.Purpose) (*otp.OTP, error) {
	for i := len(r.otps) - 1; i >= 0; i-- {
		o := r.otps[i]
		if o.Email == email && o.Code == code && o.Purpose == purpose && !o.Used && time.Now().Before(o.ExpiresAt) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOTPRepo) GetLatest(_ context.Context, email string, purpose otp.Purpose) (*otp.OTP, error) {
	var latest *otp.OTP
	for _, o := range r.otps {
		if o.Email != email || o.Purpose != purpose {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeOTPRepo) MarkUsed(_ context.Context, id string) error {
	for _, o := range r.otps {
		if o.ID == id {
			o.Used = true
			return nil
		}
	}
	return otp.ErrInvalidOTP()
}

func (r *fakeOTPRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var removed int64
	kept := r.otps[:0]
	for _, o := range r.otps {
		if o.ExpiresAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	r.otps = kept
	return removed, nil
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) SendOTP(_ context.Context, email, code string, _ otp.Purpose) error {
	n.sent = append(n.sent, code)
	return nil
}

func newTestService(repo *fakeOTPRepo, notifier *fakeNotifier) *OTPService {
	return NewOTPService(repo, notifier, 10*time.Minute, time.Minute)
}

func TestGenerateSupersedesPriorCodes(t *testing.T) {
	repo := &fakeOTPRepo{}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	first, err := svc.Generate(ctx, "a@example.com", otp.PurposeRegistration)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}

	// Age the first code past the resend window so a second issue is allowed.
	repo.otps[0].CreatedAt = time.Now().Add(-2 * time.Minute)

	second, err := svc.Generate(ctx, "a@example.com", otp.PurposeRegistration)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	if _, err := svc.Verify(ctx, "a@example.com", first.Code, otp.PurposeRegistration); err == nil && first.Code != second.Code {
		t.Fatal("superseded code still verified")
	}
	if _, err := svc.Verify(ctx, "a@example.com", second.Code, otp.PurposeRegistration); err != nil {
		t.Fatalf("latest code rejected: %v", err)
	}
}

func TestVerifyIsSingleUse(t *testing.T) {
	repo := &fakeOTPRepo{}
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	issued, err := svc.Generate(ctx, "b@example.com", otp.PurposeForgotPassword)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.Verify(ctx, "b@example.com", issued.Code, otp.PurposeForgotPassword); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := svc.Verify(ctx, "b@example.com", issued.Code, otp.PurposeForgotPassword); err == nil {
		t.Fatal("second verify of the same code succeeded")
	}
}

func TestVerifyRequiresMatchingPurpose(t *testing.T) {
	repo := &fakeOTPRepo{}
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	issued, err := svc.Generate(ctx, "c@example.com", otp.PurposeAccountActivation)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = svc.Verify(ctx, "c@example.com", issued.Code, otp.PurposeForgotPassword)
	if err == nil {
		t.Fatal("code accepted for wrong purpose")
	}
	if !errx.IsCode(err, otp.CodeInvalidOTP) {
		t.Fatalf("want generic invalid OTP error, got %v", err)
	}
}

func TestVerifyExpiredCodeFailsGenerically(t *testing.T) {
	repo := &fakeOTPRepo{}
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	issued, err := svc.Generate(ctx, "d@example.com", otp.PurposeRegistration)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	repo.otps[0].ExpiresAt = time.Now().Add(-time.Second)

	_, err = svc.Verify(ctx, "d@example.com", issued.Code, otp.PurposeRegistration)
	if err == nil {
		t.Fatal("expired code verified")
	}
	if !errx.IsCode(err, otp.CodeInvalidOTP) {
		t.Fatalf("expired code must fail with the generic error, got %v", err)
	}
}

func TestGenerateEnforcesResendWindow(t *testing.T) {
	repo := &fakeOTPRepo{}
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	if _, err := svc.Generate(ctx, "e@example.com", otp.PurposeRegistration); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	_, err := svc.Generate(ctx, "e@example.com", otp.PurposeRegistration)
	if !errx.IsCode(err, otp.CodeTooManyRequests) {
		t.Fatalf("want too-many-requests inside resend window, got %v", err)
	}

	// A different purpose for the same email is not throttled.
	if _, err := svc.Generate(ctx, "e@example.com", otp.PurposeForgotPassword); err != nil {
		t.Fatalf("different purpose throttled: %v", err)
	}
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	repo := &fakeOTPRepo{}
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	live, err := svc.Generate(ctx, "f@example.com", otp.PurposeRegistration)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	repo.otps = append(repo.otps, &otp.OTP{
		ID:        "expired",
		Email:     "f@example.com",
		Code:      "000000",
		Purpose:   otp.PurposeForgotPassword,
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})

	removed, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := svc.Verify(ctx, "f@example.com", live.Code, otp.PurposeRegistration); err != nil {
		t.Fatalf("live code removed by cleanup: %v", err)
	}
}

func TestGeneratedCodesAreSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := otp.GenerateCode()
		if err != nil {
			t.Fatalf("generate code: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("code %q has a leading zero", code)
		}
	}
}
