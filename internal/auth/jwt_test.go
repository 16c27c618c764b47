package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, issuer string) *JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewJWTManagerFromKeys(key, &key.PublicKey, issuer)
}

func TestGenerateTokenPair_RoundTrip(t *testing.T) {
	m := newTestManager(t, "cablenet")

	pair, err := m.GenerateTokenPair("user-1", time.Minute, time.Hour, 2, "local", []string{"admin"})
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	access, err := m.VerifyToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, AccessToken, access.Kind)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, 2, access.TokenVersion)
	assert.Equal(t, []string{"admin"}, access.Roles)

	refresh, err := m.VerifyToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, RefreshToken, refresh.Kind)
	assert.Equal(t, pair.JTI, refresh.ID)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestVerifyToken_Rejects(t *testing.T) {
	m := newTestManager(t, "cablenet")

	expired, err := m.GenerateTokenPair("user-1", -time.Minute, -time.Minute, 0, "local", nil)
	require.NoError(t, err)
	_, err = m.VerifyToken(expired.AccessToken)
	assert.Error(t, err)

	other := newTestManager(t, "cablenet")
	foreign, err := other.GenerateTokenPair("user-1", time.Minute, time.Minute, 0, "local", nil)
	require.NoError(t, err)
	_, err = m.VerifyToken(foreign.AccessToken)
	assert.Error(t, err)

	_, err = m.VerifyToken("not-a-token")
	assert.Error(t, err)
}

func TestVerifyToken_ChecksIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	a := NewJWTManagerFromKeys(key, &key.PublicKey, "a")
	b := NewJWTManagerFromKeys(key, &key.PublicKey, "b")

	pair, err := a.GenerateTokenPair("user-1", time.Minute, time.Minute, 0, "local", nil)
	require.NoError(t, err)
	_, err = b.VerifyToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
