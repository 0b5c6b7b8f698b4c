package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")

	// ErrInvalidCredentials is deliberately vague: an unknown username and a
	// wrong confirmation code must look the same to the caller.
	ErrInvalidCredentials = errors.New("invalid username or confirmation code")

	// ErrRoleChangeForbidden is returned when a user tries to change their own
	// role through the self-service profile endpoint.
	ErrRoleChangeForbidden = &roleChangeError{}
)

type roleChangeError struct{}

func (*roleChangeError) Error() string { return "role change forbidden" }

func (*roleChangeError) Unwrap() error { return ErrForbidden }

// FieldError is a validation failure tied to a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Unwrap() error { return ErrValidation }

// NewFieldError is shorthand for a *FieldError.
func NewFieldError(field, msg string) error {
	return &FieldError{Field: field, Message: msg}
}
