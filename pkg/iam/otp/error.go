package otp

import (
	"net/http"

	"github.com/xtown/projecthub/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("OTP")

var (
	// CodeInvalidOTP deliberately covers wrong, expired and already-used
	// codes so callers cannot probe which one failed.
	CodeInvalidOTP      = ErrRegistry.Register("INVALID_OTP", errx.TypeValidation, http.StatusBadRequest, "Invalid or expired OTP")
	CodeInvalidPurpose  = ErrRegistry.Register("INVALID_PURPOSE", errx.TypeValidation, http.StatusBadRequest, "Invalid OTP purpose")
	CodeTooManyRequests = ErrRegistry.Register("TOO_MANY_REQUESTS", errx.TypeRateLimit, http.StatusTooManyRequests, "Please wait before requesting a new OTP")
)

func ErrInvalidOTP() *errx.Error      { return ErrRegistry.New(CodeInvalidOTP) }
func ErrInvalidPurpose() *errx.Error  { return ErrRegistry.New(CodeInvalidPurpose) }
func ErrTooManyRequests() *errx.Error { return ErrRegistry.New(CodeTooManyRequests) }
