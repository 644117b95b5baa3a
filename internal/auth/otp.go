package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/d9705996/huddle/internal/cache"
)

// OTPTTL is how long a passcode stays valid.
const OTPTTL = 10 * time.Minute

// OTPStore issues and verifies 4-digit passcodes keyed by email.
type OTPStore struct {
	kv KV
}

// NewOTPStore creates an OTPStore backed by kv.
func NewOTPStore(kv KV) *OTPStore {
	return &OTPStore{kv: kv}
}

// Issue generates a code in [1000, 9999], stores it and returns it.
// A previous code for the same email is replaced.
func (s *OTPStore) Issue(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%d", 1000+n.Int64())
	if err := s.kv.Set(ctx, otpKey(email), code, OTPTTL); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify reports whether code matches the stored passcode for email.
func (s *OTPStore) Verify(ctx context.Context, email, code string) (bool, error) {
	stored, err := s.kv.Get(ctx, otpKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1, nil
}

// Consume deletes the passcode for email.
func (s *OTPStore) Consume(ctx context.Context, email string) error {
	if _, err := s.kv.Del(ctx, otpKey(email)); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

func otpKey(email string) string { return "otp-" + email }
