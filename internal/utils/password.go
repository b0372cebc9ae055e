package utils

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds in characters.  bcrypt only considers the first
// 72 bytes, so longer secrets are refused instead of silently truncated.
const (
	MinPasswordLen = 6
	MaxPasswordLen = 72
)

// ErrPasswordLength is returned for passwords outside the allowed bounds.
var ErrPasswordLength = errors.New("password must be between 6 and 72 characters")

// ValidatePassword checks the length bounds.
func ValidatePassword(plain string) error {
	if n := utf8.RuneCountInString(plain); n < MinPasswordLen || n > MaxPasswordLen || len(plain) > 72 {
		return ErrPasswordLength
	}
	return nil
}

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if err := ValidatePassword(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
