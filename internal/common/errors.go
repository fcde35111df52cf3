// Package common defines shared constants and sentinel errors used across
// client and server layers of ContactBook. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Registration conflicts. The two cases are distinct so the API can
	// tell the caller which identity is already taken.
	ErrEmailTaken    = errors.New("email is used")
	ErrUsernameTaken = errors.New("name is used")

	// Login-specific errors.
	ErrEmailNotConfirmed = errors.New("email is not confirmed")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")

	// Refresh-token lifecycle errors.
	ErrRefreshTokenStale = errors.New("refresh token superseded")

	// Cache errors.
	ErrCacheMiss = errors.New("cache miss")
)
