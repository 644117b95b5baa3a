package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// KV is the subset of cache.Store used by this package.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Allowlist tracks live refresh tokens. Only the SHA-256 of a token is
// stored; the entry expires together with the token.
type Allowlist struct {
	kv  KV
	now func() time.Time
}

// NewAllowlist creates an Allowlist backed by kv.
func NewAllowlist(kv KV) *Allowlist {
	return &Allowlist{kv: kv, now: time.Now}
}

// Save records the token until expiresAt.
func (a *Allowlist) Save(ctx context.Context, token, userID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(a.now())
	if ttl <= 0 {
		return fmt.Errorf("save refresh token: token already expired")
	}
	if err := a.kv.Set(ctx, refreshKey(token), userID, ttl); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Contains reports whether the token is still allowed.
func (a *Allowlist) Contains(ctx context.Context, token string) (bool, error) {
	ok, err := a.kv.Exists(ctx, refreshKey(token))
	if err != nil {
		return false, fmt.Errorf("lookup refresh token: %w", err)
	}
	return ok, nil
}

// Revoke removes the token and reports whether it was present.
func (a *Allowlist) Revoke(ctx context.Context, token string) (bool, error) {
	ok, err := a.kv.Del(ctx, refreshKey(token))
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return ok, nil
}

func refreshKey(token string) string {
	h := sha256.Sum256([]byte(token))
	return "refresh-" + hex.EncodeToString(h[:])
}
