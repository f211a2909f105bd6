// Package apperr defines the error taxonomy shared by the service packages.
// Handlers switch on these types with errors.As to pick a status code; the
// messages are safe to show to clients.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports bad input.  Rule names the first failing rule;
// Rules lists all of them when more than one check ran.
type ValidationError struct {
	Rule  string
	Rules []string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if len(e.Rules) > 1 {
		return "validation failed: " + strings.Join(e.Rules, ", ")
	}
	return "validation failed: " + e.Rule
}

// Validation builds a single-rule ValidationError.
func Validation(rule, format string, args ...any) error {
	return &ValidationError{Rule: rule, Rules: []string{rule}, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError hides whether the resource exists but is not visible.
type NotFoundError struct{ What string }

func (e *NotFoundError) Error() string { return e.What + " not found" }

func NotFound(what string) error { return &NotFoundError{What: what} }

// ConflictError carries the conflicting field (email, phone, id).
type ConflictError struct{ Field string }

func (e *ConflictError) Error() string { return e.Field + " already registered" }

func Conflict(field string) error { return &ConflictError{Field: field} }

// AuthGate reasons.
const (
	ReasonBadCredentials   = "bad_credentials"
	ReasonEmailNotVerified = "email_not_verified"
	ReasonUnauthenticated  = "unauthenticated"
	ReasonForbidden        = "forbidden"
	ReasonInvalidToken     = "invalid_token"
)

// AuthGateError is an authentication or authorization refusal.
type AuthGateError struct{ Reason string }

func (e *AuthGateError) Error() string { return strings.ReplaceAll(e.Reason, "_", " ") }

func AuthGate(reason string) error { return &AuthGateError{Reason: reason} }

// BackendUnavailableError wraps an infrastructure failure.  The cause is for
// logs only.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return e.Backend + " unavailable: " + e.Err.Error()
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

func Unavailable(backend string, err error) error {
	return &BackendUnavailableError{Backend: backend, Err: err}
}

// IsAuthGate reports whether err is an AuthGateError with the given reason.
func IsAuthGate(err error, reason string) bool {
	var ge *AuthGateError
	return errors.As(err, &ge) && ge.Reason == reason
}
