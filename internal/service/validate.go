package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/and161185/goph-accounts/internal/errs"
)

const (
	minNameLen     = 3
	minUsernameLen = 3
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignup(in SignupInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if in.Username != "" {
		if err := validateUsername(in.Username); err != nil {
			return err
		}
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	return validatePassword(in.Password)
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) < minNameLen {
		return fmt.Errorf("%w: name must be at least %d characters", errs.ErrValidation, minNameLen)
	}
	return nil
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) < minUsernameLen {
		return fmt.Errorf("%w: username must be at least %d characters", errs.ErrValidation, minUsernameLen)
	}
	if strings.ContainsFunc(username, isSpace) {
		return fmt.Errorf("%w: username must not contain spaces", errs.ErrValidation)
	}
	return nil
}

// validateEmail accepts a bare address only, no display name.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", errs.ErrValidation)
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, minPasswordLen)
	}
	if len(pw) > maxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", errs.ErrValidation, maxPasswordLen)
	}
	return nil
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
