package sessions

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/chacha20poly1305"

	autherrors "github.com/mfletch/go-auth-gateway/internal/errors"
)

// Key is the symmetric key for the authenticated encryption of session
// cookies. Immutable for the process lifetime.
type Key [chacha20poly1305.KeySize]byte

// LoadKey decodes a base64 encoded key. The decoded value must be exactly
// 32 bytes.
func LoadKey(encoded string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Key{}, autherrors.Wrapf(autherrors.ErrInvalidKey, "COOKIE_SECRET_KEY must be valid base64")
	}
	if len(raw) != chacha20poly1305.KeySize {
		return Key{}, autherrors.Wrapf(autherrors.ErrInvalidKey, "COOKIE_SECRET_KEY must be exactly %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// GenerateKey creates a random key. Intended for development: sessions
// encrypted under a generated key do not survive a process restart.
func GenerateKey() Key {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		panic("sessions: crypto/rand unavailable: " + err.Error())
	}
	return k
}
