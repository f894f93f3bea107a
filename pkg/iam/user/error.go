package user

import (
	"net/http"

	"github.com/xtown/projecthub/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("USER")

var (
	// CodeInvalidCredentials covers unknown email and wrong password alike
	// so login cannot be used to probe which emails exist.
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthentication, http.StatusUnauthorized, "Invalid email or password")
	CodeNotActivated       = ErrRegistry.Register("NOT_ACTIVATED", errx.TypeAuthentication, http.StatusUnauthorized, "Account is not activated. Please verify your email")
	CodeSuspended          = ErrRegistry.Register("SUSPENDED", errx.TypeAuthorization, http.StatusForbidden, "Account is suspended")
	CodeUserNotFound       = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeDuplicateEmail     = ErrRegistry.Register("DUPLICATE_EMAIL", errx.TypeConflict, http.StatusConflict, "An account with this email already exists")
	CodeSuperAdminExists   = ErrRegistry.Register("SUPER_ADMIN_EXISTS", errx.TypeConflict, http.StatusConflict, "A super admin account already exists")
	CodeSubUserLimit       = ErrRegistry.Register("SUB_USER_LIMIT", errx.TypeAuthorization, http.StatusForbidden, "Sub user limit reached")
	CodeInvalidRole        = ErrRegistry.Register("INVALID_ROLE", errx.TypeValidation, http.StatusBadRequest, "Invalid role")
	CodeAlreadyActive      = ErrRegistry.Register("ALREADY_ACTIVE", errx.TypeConflict, http.StatusConflict, "Account is already activated")
	CodeCannotModify       = ErrRegistry.Register("CANNOT_MODIFY", errx.TypeAuthorization, http.StatusForbidden, "You are not allowed to modify this account")
	CodeWeakPassword       = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password must be at least 8 characters")
)

func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrNotActivated() *errx.Error       { return ErrRegistry.New(CodeNotActivated) }
func ErrSuspended() *errx.Error          { return ErrRegistry.New(CodeSuspended) }
func ErrUserNotFound() *errx.Error       { return ErrRegistry.New(CodeUserNotFound) }
func ErrDuplicateEmail() *errx.Error     { return ErrRegistry.New(CodeDuplicateEmail) }
func ErrSuperAdminExists() *errx.Error   { return ErrRegistry.New(CodeSuperAdminExists) }
func ErrSubUserLimit() *errx.Error       { return ErrRegistry.New(CodeSubUserLimit) }
func ErrInvalidRole() *errx.Error        { return ErrRegistry.New(CodeInvalidRole) }
func ErrAlreadyActive() *errx.Error      { return ErrRegistry.New(CodeAlreadyActive) }
func ErrCannotModify() *errx.Error       { return ErrRegistry.New(CodeCannotModify) }
func ErrWeakPassword() *errx.Error       { return ErrRegistry.New(CodeWeakPassword) }
