package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/and161185/goph-accounts/migrations"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var accountCols = []string{"id", "username", "name", "email", "password_hash", "created_at", "updated_at"}

func TestAccountRepo_Create_OK_and_UniqueViolations(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := &model.Account{
		ID:           uuid.Must(uuid.NewV4()),
		Username:     "alice",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
	}
	const ins = `INSERT INTO accounts \(id, username, name, email, password_hash\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`

	mock.ExpectExec(ins).
		WithArgs(a.ID, a.Username, a.Name, a.Email, a.PasswordHash).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, a))

	mock.ExpectExec(ins).
		WithArgs(a.ID, a.Username, a.Name, a.Email, a.PasswordHash).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})
	require.ErrorIs(t, r.Create(ctx, a), errs.ErrDuplicateEmail)

	mock.ExpectExec(ins).
		WithArgs(a.ID, a.Username, a.Name, a.Email, a.PasswordHash).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})
	require.ErrorIs(t, r.Create(ctx, a), errs.ErrDuplicateUsername)

	mock.ExpectExec(ins).
		WithArgs(a.ID, a.Username, a.Name, a.Email, a.PasswordHash).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"})
	require.ErrorIs(t, r.Create(ctx, a), errs.ErrAlreadyExists)

	boom := errors.New("conn reset")
	mock.ExpectExec(ins).
		WithArgs(a.ID, a.Username, a.Name, a.Email, a.PasswordHash).
		WillReturnError(boom)
	require.ErrorIs(t, r.Create(ctx, a), boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()
	const q = `SELECT id, username, name, email, password_hash, created_at, updated_at FROM accounts WHERE email=\$1`

	mock.ExpectQuery(q).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows(accountCols).
			AddRow(id, "alice", "Alice", "alice@example.com", "h", now, now))
	a, err := r.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, id, a.ID)
	require.Equal(t, "alice", a.Username)

	mock.ExpectQuery(q).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	boom := errors.New("db down")
	mock.ExpectQuery(q).
		WithArgs("x@example.com").
		WillReturnError(boom)
	_, err = r.GetByEmail(ctx, "x@example.com")
	require.ErrorIs(t, err, boom)
}

func TestAccountRepo_GetByIDAndUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, username, name, email, password_hash, created_at, updated_at FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountCols).
			AddRow(id, "bob", "Bob", "bob@example.com", "h", now, now))
	a, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", a.Email)

	mock.ExpectQuery(`SELECT id, username, name, email, password_hash, created_at, updated_at FROM accounts WHERE username=\$1`).
		WithArgs("bob").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByUsername(ctx, "bob")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_UpdatePassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	const q = `UPDATE accounts SET password_hash=\$2, updated_at=now\(\) WHERE id=\$1`

	mock.ExpectExec(q).WithArgs(id, "new").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePassword(ctx, id, "new"))

	mock.ExpectExec(q).WithArgs(id, "new").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdatePassword(ctx, id, "new"), errs.ErrNotFound)
}

func TestAccountRepo_UpdateProfile(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	const q = `UPDATE accounts SET name=\$2, username=\$3, updated_at=now\(\) WHERE id=\$1`

	mock.ExpectExec(q).WithArgs(id, "Bob B", "bobb").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdateProfile(ctx, id, "Bob B", "bobb"))

	mock.ExpectExec(q).WithArgs(id, "Bob B", "taken").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})
	require.ErrorIs(t, r.UpdateProfile(ctx, id, "Bob B", "taken"), errs.ErrDuplicateUsername)
}

func TestConstraintNamesMatchMigrations(t *testing.T) {
	b, err := migrations.FS.ReadFile("00001_accounts.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), accountsEmailKey)
	require.Contains(t, string(b), accountsUsernameKey)
}
