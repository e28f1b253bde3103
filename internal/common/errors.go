// Package common defines shared sentinel errors used across the member-api
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level: no document matched the lookup. Services translate
	// this into the operation-specific error below.
	ErrNotFound = errors.New("not found")

	// Registration.
	ErrAlreadyRegistered = errors.New("already registered")

	// Credential checks. Unknown user and wrong password collapse into this
	// one value so responses cannot be used for user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session authentication.
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenMismatch = errors.New("token mismatch")

	// Store failures. Always wrapped around the underlying driver error.
	ErrStore = errors.New("store error")

	// Email validation.
	ErrKeyNotFound  = errors.New("validation key not found")
	ErrKeyExpired   = errors.New("validation key expired")
	ErrAlreadyValid = errors.New("email already validated")
)
