package auth

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a login names an unknown user so that
// both paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("huddle-dummy-password"), bcrypt.DefaultCost)
	return h
})

// HashPassword returns the bcrypt hash of password. The salt is embedded
// in the hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash. An empty hash, as on
// users created by invite acceptance without a password, never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		CheckDummy(password)
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckDummy burns one comparison for an unknown user.
func CheckDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
}

var (
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasDigit   = regexp.MustCompile(`\d`)
	hasSpecial = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ErrWeakPassword is returned by ValidatePassword.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain lower and upper case letters, a digit and a special character")

// ValidatePassword enforces the password strength rules.
func ValidatePassword(p string) error {
	if len(p) < 8 || !hasLower.MatchString(p) || !hasUpper.MatchString(p) ||
		!hasDigit.MatchString(p) || !hasSpecial.MatchString(p) {
		return ErrWeakPassword
	}
	return nil
}
