// Package otp issues and checks counter-based one-time passwords (HOTP, RFC 4226).
//
// Codes are never stored. Each account has a counter in storage; a code is
// derived from the deployment secret and accountComponent+counter, so checking
// a code is a re-derivation against the counter used by the last issuance.
package otp

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
	"github.com/and161185/goph-accounts/internal/repository"
)

// Defaults.
const (
	DefaultDigits = 6
	DefaultWindow = 5 * time.Minute

	secretLen = 32 // base32 chars, i.e. 160 bits
)

// Config configures the Engine.
type Config struct {
	Secret string        // per-deployment secret, required
	Digits int           // 6 or 8
	Window time.Duration // how long an issued code stays fresh
}

// Engine issues and checks codes. Safe for concurrent use; per-account
// serialization is delegated to repository.OTPRepository.Advance.
type Engine struct {
	states repository.OTPRepository
	secret string
	opts   hotp.ValidateOpts
	window time.Duration
	now    func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an Engine.
func New(states repository.OTPRepository, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Secret == "" {
		return nil, errors.New("otp: secret is required")
	}
	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Digits != int(otp.DigitsSix) && cfg.Digits != int(otp.DigitsEight) {
		return nil, fmt.Errorf("otp: unsupported digits %d", cfg.Digits)
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	e := &Engine{
		states: states,
		secret: deploymentSecret(cfg.Secret),
		opts: hotp.ValidateOpts{
			Digits:    otp.Digits(cfg.Digits),
			Algorithm: otp.AlgorithmSHA1,
		},
		window: cfg.Window,
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// deploymentSecret turns an arbitrary configured secret into an HOTP base32 key.
func deploymentSecret(s string) string {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(s))
	if len(enc) > secretLen {
		enc = enc[:secretLen]
	}
	return enc
}

// AccountComponent returns the first four decimal digits of id read as a
// 128-bit unsigned integer. It offsets counters so that accounts sharing a
// counter value still get different codes.
func AccountComponent(id uuid.UUID) uint64 {
	digits := new(big.Int).SetBytes(id.Bytes()).String()
	if len(digits) > 4 {
		digits = digits[:4]
	}
	v, _ := strconv.ParseUint(digits, 10, 64)
	return v
}

// Issue advances the account's counter and returns the code for the counter
// value consumed by this issuance.
func (e *Engine) Issue(ctx context.Context, accountID uuid.UUID) (string, error) {
	st, err := e.states.Advance(ctx, accountID, e.now())
	if err != nil {
		return "", err
	}
	return e.Code(accountID, st.Counter-1)
}

// Code derives the code for an explicit counter value.
func (e *Engine) Code(accountID uuid.UUID, counter int64) (string, error) {
	return hotp.GenerateCodeCustom(e.secret, e.value(accountID, counter), e.opts)
}

// Check compares code with the most recently issued one.
// A wrong code is OTPInvalid regardless of timing.
func (e *Engine) Check(ctx context.Context, accountID uuid.UUID, code string) (model.OTPResult, error) {
	st, err := e.states.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.OTPInvalid, errs.ErrOTPNotFound
		}
		return model.OTPInvalid, err
	}

	ok, err := hotp.ValidateCustom(code, e.value(accountID, st.Counter-1), e.secret, e.opts)
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return model.OTPInvalid, nil
		}
		return model.OTPInvalid, err
	}
	if !ok {
		return model.OTPInvalid, nil
	}
	if e.now().Sub(st.LastIssuedAt) > e.window {
		return model.OTPExpired, nil
	}
	return model.OTPPassed, nil
}

func (e *Engine) value(accountID uuid.UUID, counter int64) uint64 {
	if counter < 0 {
		counter = 0
	}
	return AccountComponent(accountID) + uint64(counter)
}
