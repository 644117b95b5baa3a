package auth_test

import (
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-secret-at-least-32-bytes-long"
	testRefreshSecret = "test-refresh-secret-at-least-32-bytes"
)

func newIssuer(accessTTL time.Duration) *auth.Issuer {
	return auth.NewIssuer(testSecret, testRefreshSecret, accessTTL, time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	iss := newIssuer(15 * time.Minute)
	tokens, err := iss.Issue("user-1", "user@example.com", "company-1", model.RoleOwner)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.Access)
	require.NotEmpty(t, tokens.Refresh)

	claims, err := iss.ParseAccess(tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "company-1", claims.CompanyID)
	assert.Equal(t, model.RoleOwner, claims.Role)
	assert.Equal(t, "user@example.com", claims.Email)

	rc, err := iss.ParseRefresh(tokens.Refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", rc.UserID)
	assert.Empty(t, rc.Email)
	assert.NotEmpty(t, rc.ID)
}

func TestParse_SecretsAreNotInterchangeable(t *testing.T) {
	iss := newIssuer(15 * time.Minute)
	tokens, err := iss.Issue("user-1", "u@example.com", "c", model.RoleUser)
	require.NoError(t, err)

	_, err = iss.ParseAccess(tokens.Refresh)
	require.Error(t, err)
	_, err = iss.ParseRefresh(tokens.Access)
	require.Error(t, err)
}

func TestParseAccess_Expired(t *testing.T) {
	iss := newIssuer(-time.Minute)
	tokens, err := iss.Issue("user-1", "u@example.com", "c", model.RoleUser)
	require.NoError(t, err)

	_, err = iss.ParseAccess(tokens.Access)
	require.Error(t, err)
}

func TestParseAccess_WrongSecret(t *testing.T) {
	tokens, err := newIssuer(time.Minute).Issue("user-1", "u@example.com", "c", model.RoleUser)
	require.NoError(t, err)

	other := auth.NewIssuer("wrong-secret", testRefreshSecret, time.Minute, time.Hour)
	_, err = other.ParseAccess(tokens.Access)
	require.Error(t, err)
}

func TestParseAccess_Garbage(t *testing.T) {
	_, err := newIssuer(time.Minute).ParseAccess("not.a.jwt")
	require.Error(t, err)
}

func TestIssue_RefreshTokensAreUnique(t *testing.T) {
	iss := newIssuer(time.Minute)
	a, err := iss.Issue("user-1", "u@example.com", "c", model.RoleUser)
	require.NoError(t, err)
	b, err := iss.Issue("user-1", "u@example.com", "c", model.RoleUser)
	require.NoError(t, err)
	assert.NotEqual(t, a.Refresh, b.Refresh)
}
