package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dmitrijs2005/trainlog/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the fixed work factor for stored hashes. Tests lower it.
var bcryptCost = 12

// PasswordPolicy configures ValidatePasswordStrength. Every requirement can
// be toggled on its own.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.special = true
		}
	}
	return c
}

// ValidatePasswordStrength checks password against policy and returns the
// first violation in a fixed order: length bounds, then uppercase,
// lowercase, number and special character. Length is counted in runes.
func ValidatePasswordStrength(password string, policy PasswordPolicy) error {
	n := utf8.RuneCountInString(password)
	if n < policy.MinLength {
		return &Error{Kind: KindTooShort, Msg: fmt.Sprintf("password must be at least %d characters long", policy.MinLength)}
	}
	if policy.MaxLength > 0 && n > policy.MaxLength {
		return &Error{Kind: KindTooLong, Msg: fmt.Sprintf("password must be at most %d characters long", policy.MaxLength)}
	}

	c := classify(password)
	switch {
	case policy.RequireUppercase && !c.upper:
		return &Error{Kind: KindNoUppercase}
	case policy.RequireLowercase && !c.lower:
		return &Error{Kind: KindNoLowercase}
	case policy.RequireNumber && !c.digit:
		return &Error{Kind: KindNoNumber}
	case policy.RequireSpecial && !c.special:
		return &Error{Kind: KindNoSpecialChar}
	}
	return nil
}

// HashPassword validates password against policy and returns its bcrypt
// hash. Weak passwords never get hashed.
func HashPassword(password string, policy PasswordPolicy) (string, error) {
	if err := ValidatePasswordStrength(password, policy); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword compares password with a stored bcrypt hash. A mismatch is
// (false, nil); a malformed hash is an error.
func VerifyPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}

// DummyHash is a valid hash at the stored work factor that matches no real
// password. Comparing against it makes a login for an unknown account cost
// as much as one with a wrong password.
var DummyHash = sync.OnceValue(func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("no account has this password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return string(h)
})

// PasswordStrength scores password from 0 to 100 for UI feedback. It is
// independent of the enforced policy.
func PasswordStrength(password string) int {
	n := utf8.RuneCountInString(password)

	score := 0
	switch {
	case n >= 16:
		score = 45
	case n >= 12:
		score = 35
	case n >= 8:
		score = 25
	}

	c := classify(password)
	if c.lower {
		score += 10
	}
	if c.upper {
		score += 10
	}
	if c.digit {
		score += 10
	}
	if c.special {
		score += 15
	}

	unique := make(map[rune]struct{}, n)
	for _, r := range password {
		unique[r] = struct{}{}
	}
	if len(unique) >= 8 {
		score += 10
	}

	lower := strings.ToLower(password)
	if strings.Contains(lower, "password") || strings.Contains(lower, "123456") || lower == "qwerty" {
		score = max(score-30, 0)
	}

	return min(score, 100)
}

// GenerateResetToken returns a fresh 32-character alphanumeric token.
func GenerateResetToken() (string, error) {
	return common.GenerateRandAlnum(common.ResetTokenLength)
}
