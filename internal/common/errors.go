// Package common defines shared constants and sentinel errors used across
// the catalog auth service. Callers should use errors.Is to match these
// values; services wrap them with additional context.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors. Each maps to one response class at the
	// transport boundary.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")
	ErrorConflict     = errors.New("conflict")
	ErrorPersistence  = errors.New("persistence error")

	// Auth errors (bad signature, disallowed algorithm, malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Refresh token lifecycle errors.
	ErrRefreshTokenInvalid = errors.New("expired or invalid refresh token")

	// Startup errors.
	ErrConfiguration = errors.New("configuration error")

	// Authorization errors.
	ErrUnknownPolicy = errors.New("unknown policy")
)
