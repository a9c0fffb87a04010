package apitokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"

	"github.com/codecampus/campus-core/pkg/auth"
)

// Token format: ctp_ followed by 32 URL-safe base64 characters.
const (
	tokenRandomBytes = 24 // encodes to 32 base64url characters
	prefixLength     = 12
)

var tokenPattern = regexp.MustCompile(`^ctp_[A-Za-z0-9_-]{32}$`)

// generateToken draws a fresh API token.
func generateToken() (string, error) {
	buf := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return auth.APITokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// validFormat reports whether a presented token has the expected shape.
func validFormat(token string) bool {
	return tokenPattern.MatchString(token)
}

// hashToken derives the storage hash of a full token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenPrefix extracts the indexed, non-secret prefix.
func tokenPrefix(token string) string {
	if len(token) < prefixLength {
		return token
	}
	return token[:prefixLength]
}
