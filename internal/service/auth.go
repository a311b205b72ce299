// Package service contains the application services composing hashing,
// tokens, one-time passwords and storage into account operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/goph-accounts/internal/crypto"
	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/limiter"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/and161185/goph-accounts/internal/repository"
	"github.com/and161185/goph-accounts/internal/token"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AccountService defines the account and authentication operations.
type AccountService interface {
	// Signup registers an account and returns it with a fresh token pair.
	Signup(ctx context.Context, in SignupInput) (model.AccountSummary, model.Tokens, error)
	// Login checks credentials and issues a token pair.
	Login(ctx context.Context, email, password, remoteAddr string) (model.AccountSummary, model.Tokens, error)
	// Refresh exchanges a refresh token for a new pair.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Authenticate resolves an access token to its account ID.
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
	// ChangePassword replaces the password after checking the current one.
	ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error
	// RequestOTP issues a one-time password and emails it.
	RequestOTP(ctx context.Context, email string) error
	// VerifyOTP checks a one-time password.
	VerifyOTP(ctx context.Context, email, code string) (model.OTPResult, error)
	// ForgotPassword starts a reset; it never reveals whether the email exists.
	ForgotPassword(ctx context.Context, email string) error
	// ResetPassword sets a new password; it never reveals whether the email exists.
	ResetPassword(ctx context.Context, email, newPassword string) error
	// CheckUsername reports availability and alternative suggestions.
	CheckUsername(ctx context.Context, username string) (available bool, suggestions []string, err error)
	// Profile returns the account summary.
	Profile(ctx context.Context, accountID uuid.UUID) (model.AccountSummary, error)
	// UpdateProfile changes display name and/or username.
	UpdateProfile(ctx context.Context, accountID uuid.UUID, name, username string) (model.AccountSummary, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenService issues and decodes token pairs.
type TokenService interface {
	IssuePair(subject uuid.UUID, email string) (model.Tokens, error)
	Decode(tok string, kind token.Kind) (model.Claims, error)
	Refresh(refreshToken string) (model.Tokens, model.Claims, error)
}

// OTPEngine issues and checks one-time passwords.
type OTPEngine interface {
	Issue(ctx context.Context, accountID uuid.UUID) (string, error)
	Check(ctx context.Context, accountID uuid.UUID, code string) (model.OTPResult, error)
}

// Notifier receives fire-and-forget events. Implementations must not block.
type Notifier interface {
	ProfileCreated(a model.AccountSummary)
	UsernameChanged(accountID uuid.UUID, username string)
	OTPIssued(email, code string)
	PasswordResetRequested(email, code string)
	PasswordChanged(email string)
}

// Deps collects AccountServiceImpl collaborators. Limiter, Notifier and Logger are optional.
type Deps struct {
	Accounts repository.AccountRepository
	Hasher   PasswordHasher
	Tokens   TokenService
	OTP      OTPEngine
	Limiter  limiter.Limiter
	Notifier Notifier
	Logger   *zap.Logger
}

const maxUsernameAttempts = 5

type AccountServiceImpl struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	tokens   TokenService
	otp      OTPEngine
	lim      limiter.Limiter
	notify   Notifier
	log      *zap.Logger
	randIntn func(n int) (int, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(d Deps) *AccountServiceImpl {
	s := &AccountServiceImpl{
		accounts: d.Accounts,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		otp:      d.OTP,
		lim:      d.Limiter,
		notify:   d.Notifier,
		log:      d.Logger,
		randIntn: crypto.RandIntn,
	}
	if s.lim == nil {
		s.lim = limiter.Nop{}
	}
	if s.notify == nil {
		s.notify = nopNotifier{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// SignupInput is the signup payload. Username is optional.
type SignupInput struct {
	Username string
	Name     string
	Email    string
	Password string
}

// Signup validates input, enforces email/username uniqueness and creates the account.
// Tokens are issued before the insert, so a failed insert leaves nothing behind.
func (s *AccountServiceImpl) Signup(ctx context.Context, in SignupInput) (model.AccountSummary, model.Tokens, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateSignup(in); err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	}

	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return model.AccountSummary{}, model.Tokens{}, errs.ErrDuplicateEmail
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.AccountSummary{}, model.Tokens{}, err
	}

	username := in.Username
	if username == "" {
		var err error
		if username, err = s.pickUsername(ctx, in.Name); err != nil {
			return model.AccountSummary{}, model.Tokens{}, err
		}
	} else if taken, err := s.usernameTaken(ctx, username); err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	} else if taken {
		return model.AccountSummary{}, model.Tokens{}, errs.ErrDuplicateUsername
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.AccountSummary{}, model.Tokens{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	}
	tokens, err := s.tokens.IssuePair(id, in.Email)
	if err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	}

	a := &model.Account{
		ID:           id,
		Username:     username,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	}

	s.notify.ProfileCreated(a.Summary())
	return a.Summary(), tokens, nil
}

// pickUsername derives "<first name><0..99>" and retries on collisions.
func (s *AccountServiceImpl) pickUsername(ctx context.Context, name string) (string, error) {
	for range maxUsernameAttempts {
		cand, err := s.candidate(firstWord(name))
		if err != nil {
			return "", err
		}
		taken, err := s.usernameTaken(ctx, cand)
		if err != nil {
			return "", err
		}
		if !taken {
			return cand, nil
		}
	}
	return "", errs.ErrDuplicateUsername
}

func (s *AccountServiceImpl) usernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Login authenticates with rate limiting by (email, remote address).
func (s *AccountServiceImpl) Login(ctx context.Context, email, password, remoteAddr string) (model.AccountSummary, model.Tokens, error) {
	email = normalizeEmail(email)
	ipHash := limiter.HashIP(remoteAddr)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	}
	if !allowed {
		return model.AccountSummary{}, model.Tokens{}, errs.ErrRateLimited
	}

	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.AccountSummary{}, model.Tokens{}, err
	}
	var ok bool
	if err == nil {
		ok = s.hasher.Verify(password, a.PasswordHash)
	} else {
		// same bcrypt cost for unknown emails
		s.hasher.Verify(password, s.dummy())
	}
	if !ok {
		blocked, _, ferr := s.lim.Failure(ctx, email, ipHash)
		if ferr != nil {
			s.log.Warn("login throttle: record failure", zap.Error(ferr))
		}
		if blocked {
			return model.AccountSummary{}, model.Tokens{}, errs.ErrRateLimited
		}
		return model.AccountSummary{}, model.Tokens{}, errs.ErrInvalidCredentials
	}

	// reset counters; a failure here only delays the next lockout
	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("login throttle: reset", zap.Error(err))
	}

	tokens, err := s.tokens.IssuePair(a.ID, a.Email)
	if err != nil {
		return model.AccountSummary{}, model.Tokens{}, err
	}
	return a.Summary(), tokens, nil
}

func (s *AccountServiceImpl) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

// Refresh issues a new pair for the refresh token's subject if the account still exists.
func (s *AccountServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	c, err := s.tokens.Decode(refreshToken, token.Refresh)
	if err != nil {
		return model.Tokens{}, err
	}
	if _, err := s.accounts.GetByID(ctx, c.Subject); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrInvalidToken
		}
		return model.Tokens{}, err
	}
	tokens, _, err := s.tokens.Refresh(refreshToken)
	return tokens, err
}

// Authenticate decodes an access token.
func (s *AccountServiceImpl) Authenticate(_ context.Context, accessToken string) (uuid.UUID, error) {
	c, err := s.tokens.Decode(accessToken, token.Access)
	if err != nil {
		return uuid.Nil, err
	}
	return c.Subject, nil
}

// ChangePassword rejects a wrong current password and reuse of the current password.
func (s *AccountServiceImpl) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	a, err := s.accountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, a.PasswordHash) {
		return errs.ErrInvalidCredentials
	}
	if s.hasher.Verify(next, a.PasswordHash) {
		return errs.ErrPasswordReuse
	}
	return s.setPassword(ctx, a, next)
}

func (s *AccountServiceImpl) setPassword(ctx context.Context, a *model.Account, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, a.ID, hash); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrAccountNotFound
		}
		return err
	}
	s.notify.PasswordChanged(a.Email)
	return nil
}

// RequestOTP issues a code for the account and emails it.
func (s *AccountServiceImpl) RequestOTP(ctx context.Context, email string) error {
	a, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}
	code, err := s.otp.Issue(ctx, a.ID)
	if err != nil {
		return err
	}
	s.notify.OTPIssued(a.Email, code)
	return nil
}

// VerifyOTP checks code against the last issued one.
func (s *AccountServiceImpl) VerifyOTP(ctx context.Context, email, code string) (model.OTPResult, error) {
	a, err := s.accountByEmail(ctx, email)
	if err != nil {
		return model.OTPInvalid, err
	}
	return s.otp.Check(ctx, a.ID, strings.TrimSpace(code))
}

// ForgotPassword emails a reset code to existing accounts and does nothing otherwise.
func (s *AccountServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	a, err := s.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrAccountNotFound) {
			return nil
		}
		return err
	}
	code, err := s.otp.Issue(ctx, a.ID)
	if err != nil {
		return err
	}
	s.notify.PasswordResetRequested(a.Email, code)
	return nil
}

// ResetPassword stores a new password for existing accounts and does nothing otherwise.
func (s *AccountServiceImpl) ResetPassword(ctx context.Context, email, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	a, err := s.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrAccountNotFound) {
			return nil
		}
		return err
	}
	err = s.setPassword(ctx, a, newPassword)
	if errors.Is(err, errs.ErrAccountNotFound) {
		return nil
	}
	return err
}

// CheckUsername reports whether username is free; when it is not, free
// suggestions derived from it are returned.
func (s *AccountServiceImpl) CheckUsername(ctx context.Context, username string) (bool, []string, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return false, nil, err
	}
	taken, err := s.usernameTaken(ctx, username)
	if err != nil {
		return false, nil, err
	}
	if !taken {
		return true, nil, nil
	}

	cands, err := s.suggestions(username)
	if err != nil {
		return false, nil, err
	}
	free := make([]string, 0, len(cands))
	for _, c := range cands {
		t, err := s.usernameTaken(ctx, c)
		if err != nil {
			return false, nil, err
		}
		if !t {
			free = append(free, c)
		}
	}
	return false, free, nil
}

// Profile returns the account summary.
func (s *AccountServiceImpl) Profile(ctx context.Context, accountID uuid.UUID) (model.AccountSummary, error) {
	a, err := s.accountByID(ctx, accountID)
	if err != nil {
		return model.AccountSummary{}, err
	}
	return a.Summary(), nil
}

// UpdateProfile changes display name and/or username. Empty values keep the current ones.
func (s *AccountServiceImpl) UpdateProfile(ctx context.Context, accountID uuid.UUID, name, username string) (model.AccountSummary, error) {
	name, username = strings.TrimSpace(name), strings.TrimSpace(username)
	if name != "" {
		if err := validateName(name); err != nil {
			return model.AccountSummary{}, err
		}
	}
	if username != "" {
		if err := validateUsername(username); err != nil {
			return model.AccountSummary{}, err
		}
	}

	a, err := s.accountByID(ctx, accountID)
	if err != nil {
		return model.AccountSummary{}, err
	}
	if name == "" {
		name = a.Name
	}
	if username == "" {
		username = a.Username
	}
	renamed := username != a.Username
	if renamed {
		taken, err := s.usernameTaken(ctx, username)
		if err != nil {
			return model.AccountSummary{}, err
		}
		if taken {
			return model.AccountSummary{}, errs.ErrDuplicateUsername
		}
	}

	if err := s.accounts.UpdateProfile(ctx, a.ID, name, username); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AccountSummary{}, errs.ErrAccountNotFound
		}
		return model.AccountSummary{}, err
	}
	a.Name, a.Username = name, username
	if renamed {
		s.notify.UsernameChanged(a.ID, username)
	}
	return a.Summary(), nil
}

func (s *AccountServiceImpl) accountByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrAccountNotFound
	}
	return a, err
}

func (s *AccountServiceImpl) accountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrAccountNotFound
	}
	return a, err
}

type nopNotifier struct{}

func (nopNotifier) ProfileCreated(model.AccountSummary)   {}
func (nopNotifier) UsernameChanged(uuid.UUID, string)     {}
func (nopNotifier) OTPIssued(string, string)              {}
func (nopNotifier) PasswordResetRequested(string, string) {}
func (nopNotifier) PasswordChanged(string)                {}
