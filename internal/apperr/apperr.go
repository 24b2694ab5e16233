// Package apperr defines the outcomes operations report to the request
// layer. Anything that is not one of these is an internal failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation failed")
	// ErrGone marks an expired confirmation code or purchase request.
	ErrGone = errors.New("gone")
	// ErrDelivery marks a notification the caller explicitly asked for
	// that could not be sent.
	ErrDelivery = errors.New("delivery failed")
)

// ValidationError carries a user-facing message about rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound wraps ErrNotFound with the kind of thing that was missing.
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Status maps an error to an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client. Internal failures get a
// generic message; their cause belongs in the server log.
func Message(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthorized"
	case errors.Is(err, ErrGone):
		return "This has expired"
	case errors.Is(err, ErrDelivery):
		return "Could not deliver the message"
	default:
		return "Internal server error"
	}
}

// IsInternal reports whether err is outside the typed outcomes.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	code := Status(err)
	return code == http.StatusInternalServerError || code == http.StatusBadGateway
}
