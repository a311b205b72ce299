package errs

import "errors"

// Kind is a stable, transport-agnostic error classification.
type Kind string

const (
	KindDuplicateEmail     Kind = "duplicate_email"
	KindDuplicateUsername  Kind = "duplicate_username"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountNotFound    Kind = "account_not_found"
	KindPasswordReuse      Kind = "password_reuse"
	KindExpiredToken       Kind = "expired_token"
	KindInvalidToken       Kind = "invalid_token"
	KindOTPNotFound        Kind = "otp_not_found"
	KindValidation         Kind = "validation"
	KindRateLimited        Kind = "rate_limited"
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindInternal           Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrDuplicateEmail, KindDuplicateEmail},
	{ErrDuplicateUsername, KindDuplicateUsername},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrPasswordReuse, KindPasswordReuse},
	{ErrExpiredToken, KindExpiredToken},
	{ErrInvalidToken, KindInvalidToken},
	{ErrOTPNotFound, KindOTPNotFound},
	{ErrValidation, KindValidation},
	{ErrRateLimited, KindRateLimited},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyExists, KindAlreadyExists},
}

// KindOf classifies err. Unknown and nil errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Detail returns a message safe to show to clients.
// Internal errors are reduced to a generic text.
func Detail(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
