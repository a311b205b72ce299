// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Storage-level sentinels returned by repositories.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation not attributable to a known column.
	ErrAlreadyExists = errors.New("already exists")
)

// Domain sentinels returned by services. Their messages double as client-facing details.
var (
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists, please try a new one")

	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username is already taken")

	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountNotFound indicates no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPasswordReuse indicates the new password equals the current one.
	ErrPasswordReuse = errors.New("you have used this password before, try a new one")

	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token has expired")

	// ErrInvalidToken indicates a token with a bad signature, structure or kind.
	ErrInvalidToken = errors.New("invalid token")

	// ErrOTPNotFound indicates no one-time password was ever requested for the account.
	ErrOTPNotFound = errors.New("no one-time password was requested")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("too many attempts, try again later")
)
