package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// OTPRepo implements OTPRepository using PostgreSQL.
type OTPRepo struct{ db *DB }

// NewOTPRepo constructs an OTP state repository.
func NewOTPRepo(db *DB) *OTPRepo { return &OTPRepo{db: db} }

// GetByAccount selects the OTP state of an account.
func (r *OTPRepo) GetByAccount(ctx context.Context, accountID uuid.UUID) (*model.OTPState, error) {
	const q = `
SELECT account_id, counter, last_issued_at
FROM otp_states WHERE account_id=$1`
	var st model.OTPState
	if err := r.db.Pool.QueryRow(ctx, q, accountID).Scan(&st.AccountID, &st.Counter, &st.LastIssuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// Advance upserts the OTP state in one statement. The row lock taken by
// ON CONFLICT DO UPDATE serializes concurrent issuances for one account.
func (r *OTPRepo) Advance(ctx context.Context, accountID uuid.UUID, now time.Time) (*model.OTPState, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO otp_states (id, account_id, counter, last_issued_at)
VALUES ($1, $2, 2, $3)
ON CONFLICT (account_id) DO UPDATE
SET counter = otp_states.counter + 1, last_issued_at = EXCLUDED.last_issued_at
RETURNING account_id, counter, last_issued_at`
	var st model.OTPState
	if err := r.db.Pool.QueryRow(ctx, q, id, accountID, now).Scan(&st.AccountID, &st.Counter, &st.LastIssuedAt); err != nil {
		return nil, err
	}
	return &st, nil
}
