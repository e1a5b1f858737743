package sessions

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Codec turns a Session into a tamper-proof, confidentiality-protected
// cookie value and back, using ChaCha20-Poly1305. Safe for concurrent use
// after construction.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec over the given key.
func NewCodec(key Key) (*Codec, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("create chacha20: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode serializes the session and encrypts it into a base64url cookie
// value. The random nonce is prepended to the ciphertext.
func (c *Codec) Encode(s Session) (string, error) {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decode decrypts and deserializes a cookie value. Any failure - bad
// encoding, truncation, failed authentication, malformed or unexpected
// payload - yields ok == false, never an error: an invalid cookie degrades
// to "anonymous". Corruption must never be interpreted as authentication.
func (c *Codec) Decode(value string) (Session, bool) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Session{}, false
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return Session{}, false
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Session{}, false
	}

	var s Session
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Session{}, false
	}
	if s.UserInfo.Sub == "" {
		return Session{}, false
	}
	return s, true
}
