package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const KeySize = 32

// Key is a fixed-size 32-byte secret: a private key, a session key, or the
// pre-shared key. Modeled on device/noise-types.go's NoisePrivateKey, a
// fixed-size array rather than a slice so values copy cleanly and zero
// values are always well-formed.
type Key [KeySize]byte

// Equals compares two keys in constant time.
func (k Key) Equals(other Key) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// IsZero reports whether k is the zero key (never established).
func (k Key) IsZero() bool {
	var zero Key
	return k.Equals(zero)
}

// KeyFromHex decodes a hex-encoded 32-byte key, such as the fingerprint a
// peer advertises in a DISCOVERY packet. It rejects anything that isn't
// exactly KeySize bytes once decoded, so a malformed or truncated
// fingerprint is caught at the boundary instead of silently zero-padded.
func KeyFromHex(s string) (Key, error) {
	var k Key
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) != KeySize {
		return k, ErrDecode
	}
	copy(k[:], raw)
	return k, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func randomHex(n int) (string, error) {
	b, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func sha256Sum(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
