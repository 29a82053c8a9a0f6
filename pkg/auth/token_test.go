package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret() []byte {
	return []byte("this-is-a-fake-secret-at-least-32-bytes-long")
}

func TestTokenIssuer_RejectsWeakSecret(t *testing.T) {
	_, err := NewTokenIssuer([]byte("too-short"), time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestTokenIssuer_IssueThenVerifyRoundTrips(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret(), time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenIssuer_VerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret(), -time.Minute)
	require.NoError(t, err)

	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenIssuer_VerifyRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret(), time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer([]byte("a-completely-different-secret-value-32b"), time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("user-1")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_VerifyRejectsGarbage(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret(), time.Hour)
	require.NoError(t, err)

	_, err = issuer.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
