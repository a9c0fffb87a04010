package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(0, 0, 0)

	encoded, err := h.Hash("Correct_Horse_9!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	ok, err := h.Verify("Correct_Horse_9!", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Wrong_Horse_9!", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSaltVariance(t *testing.T) {
	h := NewHasher(1, 8*1024, 1)

	a, err := h.Hash("Correct_Horse_9!")
	require.NoError(t, err)
	b, err := h.Hash("Correct_Horse_9!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyLegacyHash(t *testing.T) {
	h := NewHasher(0, 0, 0)

	ok, err := h.Verify("whatever", "5f4dcc3b5aa765d61d8327deb882cf99")
	assert.ErrorIs(t, err, ErrLegacyHash)
	assert.False(t, ok)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(0, 0, 0)

	ok, err := h.Verify("whatever", "$argon2id$v=19$garbage")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNeedsRehash(t *testing.T) {
	weak := NewHasher(1, 8*1024, 1)
	strong := NewHasher(0, 0, 0)

	encoded, err := weak.Hash("Correct_Horse_9!")
	require.NoError(t, err)

	assert.True(t, strong.NeedsRehash(encoded))
	assert.False(t, weak.NeedsRehash(encoded))

	// Malformed hashes always need replacement.
	assert.True(t, strong.NeedsRehash("not-a-hash"))
}

func TestDefaultParameters(t *testing.T) {
	h := NewHasher(0, 0, 0)
	assert.Equal(t, uint32(3), h.Time)
	assert.Equal(t, uint32(64*1024), h.Memory)
	assert.Equal(t, uint8(4), h.Threads)
}
