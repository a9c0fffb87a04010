package apitokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenFormat(t *testing.T) {
	token, err := generateToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "ctp_"))
	assert.Len(t, token, 36)
	assert.True(t, validFormat(token))
}

func TestGenerateTokenUniqueness(t *testing.T) {
	seen := map[string]struct{}{}
	for range 100 {
		token, err := generateToken()
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, validFormat("ctp_"+strings.Repeat("a", 32)))
	assert.False(t, validFormat("ctp_short"))
	assert.False(t, validFormat("emt_"+strings.Repeat("a", 32)))
	assert.False(t, validFormat("ctp_"+strings.Repeat("a", 33)))
	assert.False(t, validFormat("ctp_"+strings.Repeat("!", 32)))
}

func TestHashAndPrefix(t *testing.T) {
	token, err := generateToken()
	require.NoError(t, err)

	// The stored hash verifies the full token deterministically.
	assert.Equal(t, hashToken(token), hashToken(token))
	assert.Len(t, hashToken(token), 64)

	prefix := tokenPrefix(token)
	assert.Len(t, prefix, 12)
	assert.True(t, strings.HasPrefix(token, prefix))

	assert.Equal(t, "ctp_x", tokenPrefix("ctp_x"))
}
