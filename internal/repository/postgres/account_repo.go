package postgres

import (
	"context"
	"errors"

	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// Constraint names from migrations/00001_accounts.sql.
const (
	accountsEmailKey    = "accounts_email_key"
	accountsUsernameKey = "accounts_username_key"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, username, name, email, password_hash)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Username, a.Name, a.Email, a.PasswordHash)
	return mapUnique(err)
}

const selectAccount = `
SELECT id, username, name, email, password_hash, created_at, updated_at
FROM accounts `

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.getOne(ctx, selectAccount+`WHERE id=$1`, id)
}

// GetByEmail selects an account by email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.getOne(ctx, selectAccount+`WHERE email=$1`, email)
}

// GetByUsername selects an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.getOne(ctx, selectAccount+`WHERE username=$1`, username)
}

func (r *AccountRepo) getOne(ctx context.Context, q string, arg any) (*model.Account, error) {
	row := r.db.Pool.QueryRow(ctx, q, arg)
	var a model.Account
	if err := row.Scan(&a.ID, &a.Username, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	const q = `UPDATE accounts SET password_hash=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdateProfile replaces display name and username.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, username string) error {
	const q = `UPDATE accounts SET name=$2, username=$3, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, name, username)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func mapUnique(err error) error {
	name, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch name {
	case accountsEmailKey:
		return errs.ErrDuplicateEmail
	case accountsUsernameKey:
		return errs.ErrDuplicateUsername
	default:
		return errs.ErrAlreadyExists
	}
}
