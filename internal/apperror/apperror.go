// Package apperror defines the error kinds shared by every layer.
//
// Services and repositories return *AppError values that wrap one of the
// sentinels below. Callers test the kind with errors.Is and read the
// human-readable text from Message. Only the HTTP layer knows how a kind maps
// to a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrConflict    = errors.New("conflict")
	ErrExhausted   = errors.New("exhausted")
	ErrInactive    = errors.New("inactive")
	ErrAuthMissing = errors.New("authentication missing")
	ErrAuthInvalid = errors.New("authentication invalid")
	ErrUpstream    = errors.New("upstream failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// AlreadyRedeemed reports that the user has already activated this promo code.
// It is a Conflict, so callers that only care about the kind can keep using
// errors.Is(err, ErrConflict).
func AlreadyRedeemed(code string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("promo code %s has already been redeemed", code),
	}
}

// Exhausted reports that a limited resource has no uses left.
func Exhausted(resource, id string) *AppError {
	return &AppError{
		Err:     ErrExhausted,
		Message: fmt.Sprintf("%s %s has no uses left", resource, id),
	}
}

// Inactive reports that a resource exists but is switched off.
func Inactive(resource, id string) *AppError {
	return &AppError{
		Err:     ErrInactive,
		Message: fmt.Sprintf("%s %s is not active", resource, id),
	}
}

// AuthMissing is returned when a protected operation is called without a token.
func AuthMissing() *AppError {
	return &AppError{
		Err:     ErrAuthMissing,
		Message: "authentication token is required",
	}
}

// AuthInvalid is returned for every token that fails verification. Expired,
// malformed and badly signed tokens are deliberately indistinguishable.
func AuthInvalid() *AppError {
	return &AppError{
		Err:     ErrAuthInvalid,
		Message: "authentication token is invalid",
	}
}

// Upstream reports that an identity provider call failed. The provider's own
// error is not exposed to clients; log it before wrapping.
func Upstream(provider string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s authorization failed", provider),
	}
}
