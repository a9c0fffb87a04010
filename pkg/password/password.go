// Package password implements Argon2id password hashing and the password
// strength policy applied at set-time.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hashing parameters. Overridable via Hasher fields.
const (
	DefaultTime    = 3
	DefaultMemory  = 64 * 1024 // KiB
	DefaultThreads = 4
	SaltLength     = 16 // 128 bit
	KeyLength      = 32 // 256 bit
)

var (
	// ErrLegacyHash marks a stored credential that predates Argon2id.
	// Verification against it always fails, forcing a reset.
	ErrLegacyHash = errors.New("password: legacy hash format")

	errMalformedHash = errors.New("password: malformed hash")
)

// Hasher hashes and verifies passwords with Argon2id.
type Hasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// NewHasher returns a Hasher with the given parameters, falling back to the
// defaults for zero values.
func NewHasher(time, memory uint32, threads uint8) *Hasher {
	h := &Hasher{Time: time, Memory: memory, Threads: threads}
	if h.Time == 0 {
		h.Time = DefaultTime
	}
	if h.Memory == 0 {
		h.Memory = DefaultMemory
	}
	if h.Threads == 0 {
		h.Threads = DefaultThreads
	}
	return h
}

// Hash derives an Argon2id hash in PHC string format. Each call draws a fresh
// salt, so hashing the same password twice yields different strings.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an encoded hash in constant time.
// A stored value without the $argon2 prefix is a legacy hash and never
// verifies.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "$argon2") {
		return false, ErrLegacyHash
	}

	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

// NeedsRehash reports whether the encoded hash was derived with parameters
// weaker than the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	params, _, _, err := decodeHash(encoded)
	if err != nil {
		return true
	}
	return params.time < h.Time || params.memory < h.Memory || params.threads < h.Threads
}

type hashParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

func decodeHash(encoded string) (hashParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return hashParams{}, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return hashParams{}, nil, nil, errMalformedHash
	}
	if version != argon2.Version {
		return hashParams{}, nil, nil, errMalformedHash
	}

	var p hashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return hashParams{}, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashParams{}, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return hashParams{}, nil, nil, errMalformedHash
	}

	return p, salt, key, nil
}
