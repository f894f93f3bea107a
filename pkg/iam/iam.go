// Package iam groups the identity and access sub-domains: user accounts,
// OTP verification, token issuance, the project inventory and delegated
// project access.
//
// Each sub-domain follows the same layering:
//
//	HTTP Handler  →  Service Layer  →  Repository Interface  →  Infrastructure (Postgres/Redis)
//
// and owns its error registry ("USER", "OTP", "AUTH", "PROJECT").
package iam

import (
	"net/http"

	"github.com/xtown/projecthub/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthentication, http.StatusUnauthorized, "Unauthorized")
	CodeAccessDenied = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
	CodeInvalidBody  = ErrRegistry.Register("INVALID_BODY", errx.TypeValidation, http.StatusBadRequest, "Invalid request body")
	CodeMissingField = ErrRegistry.Register("MISSING_FIELD", errx.TypeValidation, http.StatusBadRequest, "Missing required field")
)

// Helper functions
func ErrUnauthorized() *errx.Error { return ErrRegistry.New(CodeUnauthorized) }
func ErrAccessDenied() *errx.Error { return ErrRegistry.New(CodeAccessDenied) }
func ErrInvalidBody() *errx.Error  { return ErrRegistry.New(CodeInvalidBody) }

func ErrMissingField(name string) *errx.Error {
	return ErrRegistry.New(CodeMissingField).WithDetail("field", name)
}
