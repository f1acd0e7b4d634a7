// Package common defines shared sentinel errors used across the listing
// service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors (bad image count, unknown field, size/type limit).
	// Always rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// Auth errors. Unauthorized means no verified identity; Forbidden means
	// a verified identity that does not own the resource.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Workflow errors. The internal cause is logged, never exposed to the
	// caller.
	ErrUploadFailed      = errors.New("failed to store images")
	ErrPersistenceFailed = errors.New("failed to persist listing")

	// Generic internal error.
	ErrInternal = errors.New("internal error")
)

// IsClientError reports whether err is caused by the request rather than by
// the service, so the original message is safe to pass back to the caller.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden)
}
