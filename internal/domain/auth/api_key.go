// Package auth validates inbound API keys against configured hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidKey is returned when an API key matches no configured hash.
var ErrInvalidKey = errors.New("invalid api key")

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// KeyRing holds the configured API key hashes. Keys are seeded from
// configuration at startup; the ring is read-only afterwards and safe for
// concurrent use.
type KeyRing struct {
	// sha256Index maps hex SHA-256 digests to their position in hashes, the
	// fast path for sha256-hashed keys.
	sha256Index map[string]int
	hashes      []string
}

// NewKeyRing builds a ring from stored hashes. Hashes in an unrecognized
// format are rejected so misconfiguration surfaces at startup rather than as
// silent authentication failures.
func NewKeyRing(hashes []string) (*KeyRing, error) {
	r := &KeyRing{
		sha256Index: make(map[string]int, len(hashes)),
		hashes:      hashes,
	}
	for i, h := range hashes {
		switch DetectHashType(h) {
		case "sha256":
			r.sha256Index[strings.TrimPrefix(h, "sha256:")] = i
		case "argon2id":
			// Verified by iteration.
		default:
			return nil, fmt.Errorf("api key hash %d: %w", i, ErrUnknownHashType)
		}
	}
	return r, nil
}

// Empty reports whether the ring holds no keys. An empty ring means inbound
// authentication is disabled.
func (r *KeyRing) Empty() bool {
	return len(r.hashes) == 0
}

// Validate checks a raw key against the ring. Returns ErrInvalidKey when no
// hash matches.
func (r *KeyRing) Validate(rawKey string) error {
	// Fast path: direct SHA-256 lookup.
	if _, ok := r.sha256Index[HashKey(rawKey)]; ok {
		return nil
	}

	// Slow path: iterate and verify, covers Argon2id hashes.
	for _, stored := range r.hashes {
		match, err := VerifyKey(rawKey, stored)
		if err != nil {
			continue
		}
		if match {
			return nil
		}
	}
	return ErrInvalidKey
}

// HashKey returns the SHA-256 hex hash of the raw key.
func HashKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

// argon2idParams defines OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB (OWASP minimum: 46 MiB)
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKeyArgon2id returns an Argon2id hash of the raw key in PHC format:
// $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// DetectHashType identifies the hash algorithm used for a stored hash.
// Returns "argon2id" for PHC format, "sha256" for prefixed or bare hex,
// "unknown" for unrecognized formats.
func DetectHashType(storedHash string) string {
	if strings.HasPrefix(storedHash, "$argon2id$") {
		return "argon2id"
	}
	if strings.HasPrefix(storedHash, "sha256:") {
		return "sha256"
	}
	if len(storedHash) == 64 && isHexString(storedHash) {
		return "sha256"
	}
	return "unknown"
}

func isHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// VerifyKey verifies a raw key against a stored hash. Supports Argon2id (PHC
// format), sha256-prefixed, and bare SHA-256 hex. Returns ErrUnknownHashType
// for unrecognized formats.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	switch DetectHashType(storedHash) {
	case "argon2id":
		return safeArgon2idCompare(rawKey, storedHash)

	case "sha256":
		expected := strings.TrimPrefix(storedHash, "sha256:")
		computed := HashKey(rawKey)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1, nil

	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic
// recovery. The underlying argon2 library panics on malformed hashes with
// invalid parameters (t=0 rounds, p=0 parallelism); those become errors here.
func safeArgon2idCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
