package project

import (
	"net/http"

	"github.com/xtown/projecthub/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("PROJECT")

var (
	CodeProjectNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Project not found")
	CodeDuplicateProject = ErrRegistry.Register("DUPLICATE", errx.TypeConflict, http.StatusConflict, "A project with this identifier already exists")
	CodeInvalidCustomID  = ErrRegistry.Register("INVALID_CUSTOM_ID", errx.TypeValidation, http.StatusBadRequest, "Project identifier must be 3-20 characters: letters, digits, hyphen or underscore")
	CodeGrantNotFound    = ErrRegistry.Register("GRANT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User does not have access to this project")
	CodeAccessRevoked    = ErrRegistry.Register("ACCESS_REVOKED", errx.TypeAuthorization, http.StatusForbidden, "Project access has been revoked")
	CodeInvalidRole      = ErrRegistry.Register("INVALID_ROLE", errx.TypeValidation, http.StatusBadRequest, "Invalid project role")
	CodeNoRedirectURL    = ErrRegistry.Register("NO_REDIRECT_URL", errx.TypeValidation, http.StatusBadRequest, "No URL configured for this project")
)

func ErrProjectNotFound() *errx.Error  { return ErrRegistry.New(CodeProjectNotFound) }
func ErrDuplicateProject() *errx.Error { return ErrRegistry.New(CodeDuplicateProject) }
func ErrInvalidCustomID() *errx.Error  { return ErrRegistry.New(CodeInvalidCustomID) }
func ErrGrantNotFound() *errx.Error    { return ErrRegistry.New(CodeGrantNotFound) }
func ErrAccessRevoked() *errx.Error    { return ErrRegistry.New(CodeAccessRevoked) }
func ErrInvalidRole() *errx.Error      { return ErrRegistry.New(CodeInvalidRole) }
func ErrNoRedirectURL() *errx.Error    { return ErrRegistry.New(CodeNoRedirectURL) }
