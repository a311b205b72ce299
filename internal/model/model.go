// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Account represents an identity record. The password is stored only as a bcrypt hash.
type Account struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	Name         string    // display name
	Email        string    // unique, lowercased
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary returns the public projection of the account.
func (a Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Username: a.Username, Name: a.Name, Email: a.Email}
}

// AccountSummary is what callers get back about an account.
type AccountSummary struct {
	ID       uuid.UUID
	Username string
	Name     string
	Email    string
}

// Tokens collects an issued access/refresh token pair.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   uuid.UUID
	Email     string
	Kind      string // "access" or "refresh"
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// OTPState is the per-account one-time password counter.
type OTPState struct {
	AccountID    uuid.UUID
	Counter      int64     // next counter to use; the last issued code used Counter-1
	LastIssuedAt time.Time // when the last code was issued
}

// OTPResult is the outcome of checking a submitted one-time password.
type OTPResult int

const (
	// OTPInvalid means the code does not match the last issued one.
	OTPInvalid OTPResult = iota
	// OTPPassed means the code matches and is within the validity window.
	OTPPassed
	// OTPExpired means the code matches but the validity window has elapsed.
	OTPExpired
)

// String returns the wire name of the result.
func (r OTPResult) String() string {
	switch r {
	case OTPPassed:
		return "passed"
	case OTPExpired:
		return "expired"
	default:
		return "invalid"
	}
}
