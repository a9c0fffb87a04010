package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the JWT claims of an access token.
type accessClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// signAccessToken issues a signed access token for the session.
func signAccessToken(secret []byte, userID, sid string, ttl time.Duration, now time.Time) (string, error) {
	claims := accessClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseAccessToken verifies signature and expiry and returns (userID, sid).
func parseAccessToken(secret []byte, token string) (string, string, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !parsed.Valid || claims.Subject == "" || claims.SID == "" {
		return "", "", fmt.Errorf("invalid access token claims")
	}
	return claims.Subject, claims.SID, nil
}

// newOpaqueToken draws a random URL-safe token.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashToken derives the storage form of an opaque token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
