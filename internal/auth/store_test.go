package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/cache/cachetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlist(t *testing.T) {
	kv, mr := cachetest.New(t)
	a := auth.NewAllowlist(kv)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "tok", "user-1", time.Now().Add(time.Hour)))
	ok, err := a.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	// The raw token never appears as a key.
	assert.False(t, mr.Exists("tok"))

	removed, err := a.Revoke(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = a.Revoke(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAllowlist_ExpiresWithToken(t *testing.T) {
	kv, mr := cachetest.New(t)
	a := auth.NewAllowlist(kv)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "tok", "user-1", time.Now().Add(time.Minute)))
	mr.FastForward(2 * time.Minute)

	ok, err := a.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowlist_RejectsExpired(t *testing.T) {
	kv, _ := cachetest.New(t)
	err := auth.NewAllowlist(kv).Save(context.Background(), "tok", "u", time.Now().Add(-time.Second))
	require.Error(t, err)
}

func TestOTPStore(t *testing.T) {
	kv, mr := cachetest.New(t)
	s := auth.NewOTPStore(kv)
	ctx := context.Background()

	code, err := s.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, code, 4)
	assert.True(t, mr.Exists("otp-a@x.com"))

	ok, err := s.Verify(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify(ctx, "a@x.com", "0000")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Consume(ctx, "a@x.com"))
	ok, err = s.Verify(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPStore_Expires(t *testing.T) {
	kv, mr := cachetest.New(t)
	s := auth.NewOTPStore(kv)
	ctx := context.Background()

	code, err := s.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	mr.FastForward(auth.OTPTTL + time.Second)

	ok, err := s.Verify(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPassword(t *testing.T) {
	h, err := auth.HashPassword("Secret#123")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(h, "Secret#123"))
	assert.False(t, auth.CheckPassword(h, "wrong"))
	assert.False(t, auth.CheckPassword("", "Secret#123"))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		pw string
		ok bool
	}{
		{"Secret#123", true},
		{"short#1A", true},
		{"Sh#1a", false},
		{"alllowercase#1", false},
		{"ALLUPPER#1", false},
		{"NoDigits#here", false},
		{"NoSpecial123", false},
	}
	for _, tt := range tests {
		t.Run(tt.pw, func(t *testing.T) {
			if tt.ok {
				assert.NoError(t, auth.ValidatePassword(tt.pw))
			} else {
				assert.ErrorIs(t, auth.ValidatePassword(tt.pw), auth.ErrWeakPassword)
			}
		})
	}
}
