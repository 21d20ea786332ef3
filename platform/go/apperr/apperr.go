// Package apperr defines the error taxonomy shared by services and HTTP handlers.
//
// Services return these errors (or wrap them with %w); handlers translate them
// into status codes with HTTPStatus and into client-facing messages with
// PublicMessage.
package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Sentinel kinds. Domain packages wrap them to attach context, e.g.
// fmt.Errorf("tenant %w", apperr.ErrNotFound).
var (
	ErrAuthentication = errors.New("authentication required")
	ErrAuthorization  = errors.New("not authorized")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrQuotaExceeded  = errors.New("quota exceeded")
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// Add appends a message for the field.
func (f FieldErrors) Add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}

// Err returns a *ValidationError when at least one field failed, nil otherwise.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// NewValidation builds a ValidationError with one message per field.
func NewValidation(fields map[string]string) error {
	fe := FieldErrors{}
	for field, message := range fields {
		fe.Add(field, message)
	}
	return &ValidationError{Fields: fe}
}

// ProviderError wraps a failure reported by the identity provider. Its
// message is passed through to clients unchanged.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	var validationErr *ValidationError
	var providerErr *ProviderError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrQuotaExceeded):
		return http.StatusConflict
	case errors.As(err, &providerErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to clients. Unclassified
// errors collapse into a generic message.
func PublicMessage(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "one or more fields are invalid"
	}
	if HTTPStatus(err) >= http.StatusInternalServerError {
		return "an unexpected error occurred"
	}
	return err.Error()
}

// Fields returns the per-field messages of a ValidationError, if any.
func Fields(err error) FieldErrors {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}
