package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgonto/smart-contract/internal/db/models"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(testAddress, []models.Role{models.RoleIssuer, models.RoleStudent})
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, testAddress, claims.Address)
	assert.True(t, claims.HasRole(models.RoleIssuer))
	assert.True(t, claims.HasRole(models.RoleStudent))
	assert.False(t, claims.HasRole(models.RoleAdmin))
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(testAddress, []models.Role{models.RoleStudent})
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	minted := NewTokenIssuer("secret-a", time.Hour)
	parsed := NewTokenIssuer("secret-b", time.Hour)

	token, err := minted.Issue(testAddress, []models.Role{models.RoleStudent})
	require.NoError(t, err)

	_, err = parsed.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	_, err := issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
