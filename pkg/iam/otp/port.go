package otp

import (
	"context"
	"time"
)

// Repository persists OTP codes.
type Repository interface {
	Create(ctx context.Context, o *OTP) error
	// DeleteUnused removes all unused codes for an email and purpose,
	// superseding them before a new code is issued.
	DeleteUnused(ctx context.Context, email string, purpose Purpose) error
	// GetUsable returns the matching unused, unexpired code, or nil.
	GetUsable(ctx context.Context, email, code string, purpose Purpose) (*OTP, error)
	// GetLatest returns the newest code for an email and purpose
	// regardless of state, or nil when none exists.
	GetLatest(ctx context.Context, email string, purpose Purpose) (*OTP, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
