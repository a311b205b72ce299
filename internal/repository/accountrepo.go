// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/goph-accounts/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides CRUD access for accounts.
// Lookups return errs.ErrNotFound when no row matches.
type AccountRepository interface {
	// Create inserts a new account. Unique violations map to
	// errs.ErrDuplicateEmail or errs.ErrDuplicateUsername.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByEmail loads an account by (lowercased) email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// GetByUsername loads an account by username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	// UpdateProfile replaces display name and username.
	UpdateProfile(ctx context.Context, id uuid.UUID, name, username string) error
}

// OTPRepository stores per-account one-time password counters.
type OTPRepository interface {
	// GetByAccount loads the state for an account.
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*model.OTPState, error)
	// Advance atomically creates the state (counter 2) or increments the counter,
	// stamps LastIssuedAt with now and returns the stored state.
	Advance(ctx context.Context, accountID uuid.UUID, now time.Time) (*model.OTPState, error)
}
