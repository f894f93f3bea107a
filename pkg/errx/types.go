package errx

// Type categorizes an error for propagation and HTTP mapping.
type Type string

const (
	// TypeInternal represents unexpected server-side failures
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents malformed or rejected input
	TypeValidation Type = "VALIDATION"

	// TypeAuthentication represents missing or invalid credentials
	TypeAuthentication Type = "AUTHENTICATION"

	// TypeAuthorization represents authenticated but insufficient access
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeNotFound represents a missing resource
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents duplicate or state-conflicting writes
	TypeConflict Type = "CONFLICT"

	// TypeRateLimit represents throttled requests
	TypeRateLimit Type = "RATE_LIMIT"

	// TypeExternal represents failures of external collaborators
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type.
func (t Type) String() string {
	return string(t)
}
