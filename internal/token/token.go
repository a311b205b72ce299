// Package token issues and verifies HS256 access/refresh token pairs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/goph-accounts/internal/errs"
	"github.com/and161185/goph-accounts/internal/model"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Config holds signing secrets and lifetimes. Each kind has its own secret,
// so a refresh token never verifies as an access token and vice versa.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Service issues and decodes tokens. It is stateless and safe for concurrent use.
type Service struct {
	cfg Config
	now func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New validates cfg, fills default TTLs and constructs the Service.
func New(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type claims struct {
	Email string `json:"email,omitempty"`
	Kind  Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// IssuePair signs a fresh access and refresh token for subject.
func (s *Service) IssuePair(subject uuid.UUID, email string) (model.Tokens, error) {
	now := s.now()
	access, accessExp, err := s.sign(Access, subject, email, now)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, refreshExp, err := s.sign(Refresh, subject, email, now)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) sign(kind Kind, subject uuid.UUID, email string, now time.Time) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(s.ttl(kind))
	c := claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   subject.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Decode verifies tok as a token of the expected kind.
// It returns errs.ErrExpiredToken for a valid token past expiry and
// errs.ErrInvalidToken for everything else that fails verification.
func (s *Service) Decode(tok string, kind Kind) (model.Claims, error) {
	if kind != Access && kind != Refresh {
		return model.Claims{}, fmt.Errorf("unknown token kind %q: %w", kind, errs.ErrInvalidToken)
	}

	var c claims
	_, err := jwt.ParseWithClaims(tok, &c, func(*jwt.Token) (any, error) {
		return s.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Claims{}, errs.ErrExpiredToken
		}
		return model.Claims{}, errs.ErrInvalidToken
	}
	if c.Kind != kind {
		return model.Claims{}, errs.ErrInvalidToken
	}

	sub, err := uuid.FromString(c.Subject)
	if err != nil {
		return model.Claims{}, errs.ErrInvalidToken
	}

	out := model.Claims{
		Subject: sub,
		Email:   c.Email,
		Kind:    string(c.Kind),
		TokenID: c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// Refresh exchanges a valid refresh token for a new pair bound to the same subject.
// The presented refresh token stays valid until its own expiry.
func (s *Service) Refresh(refreshToken string) (model.Tokens, model.Claims, error) {
	c, err := s.Decode(refreshToken, Refresh)
	if err != nil {
		return model.Tokens{}, model.Claims{}, err
	}
	pair, err := s.IssuePair(c.Subject, c.Email)
	if err != nil {
		return model.Tokens{}, model.Claims{}, err
	}
	return pair, c, nil
}

func (s *Service) secret(kind Kind) []byte {
	if kind == Refresh {
		return s.cfg.RefreshSecret
	}
	return s.cfg.AccessSecret
}

func (s *Service) ttl(kind Kind) time.Duration {
	if kind == Refresh {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}
