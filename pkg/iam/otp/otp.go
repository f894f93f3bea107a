package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// Purpose is the workflow an OTP was issued for. A code is only accepted
// for the purpose it was created with.
type Purpose string

const (
	PurposeRegistration      Purpose = "REGISTRATION"
	PurposeAccountActivation Purpose = "ACCOUNT_ACTIVATION"
	PurposeForgotPassword    Purpose = "FORGOT_PASSWORD"
)

// Valid reports whether the purpose is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposeAccountActivation, PurposeForgotPassword:
		return true
	}
	return false
}

// OTP is a single-use numeric code bound to an email and a purpose.
type OTP struct {
	ID        string
	Email     string
	Code      string
	Purpose   Purpose
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the code's validity window has passed.
func (o *OTP) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsUsable reports whether the code can still be consumed.
func (o *OTP) IsUsable() bool {
	return !o.Used && !o.IsExpired()
}

// GenerateCode returns a cryptographically random 6-digit code in the
// range 100000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
