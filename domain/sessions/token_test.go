package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-not-for-production")

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := signAccessToken(testSecret, "user-1", "sid-1", time.Hour, now)
	require.NoError(t, err)

	userID, sid, err := parseAccessToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "sid-1", sid)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := signAccessToken(testSecret, "user-1", "sid-1", time.Hour, time.Now())
	require.NoError(t, err)

	_, _, err = parseAccessToken([]byte("another-secret"), token)
	assert.Error(t, err)
}

func TestAccessTokenExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	token, err := signAccessToken(testSecret, "user-1", "sid-1", time.Hour, issued)
	require.NoError(t, err)

	_, _, err = parseAccessToken(testSecret, token)
	assert.Error(t, err)
}

func TestAccessTokenGarbage(t *testing.T) {
	_, _, err := parseAccessToken(testSecret, "not.a.jwt")
	assert.Error(t, err)
}

func TestOpaqueTokenUniqueness(t *testing.T) {
	a, err := newOpaqueToken()
	require.NoError(t, err)
	b, err := newOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43) // 32 bytes base64url, unpadded
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, hashToken("x"), hashToken("x"))
	assert.NotEqual(t, hashToken("x"), hashToken("y"))
	assert.Len(t, hashToken("x"), 64)
}
