// Package payload seals and opens message content with
// XChaCha20-Poly1305. The key is provisioned out of band; without one
// the codec degrades to passthrough so plaintext deployments keep
// working.
package payload

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrBadKey is returned when the configured key is not the required length.
var ErrBadKey = errors.New("payload key must be 32 bytes")

// Codec encrypts and decrypts message bodies. A nil Codec passes
// content through unchanged.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a 32-byte key. An empty key yields a
// nil codec, meaning passthrough.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) == 0 {
		return nil, nil
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrBadKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (c *Codec) Seal(plaintext string) string {
	if c == nil {
		return plaintext
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		log.Printf("payload nonce generation failed: %v", err)
		return plaintext
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed)
}

// Open decrypts content produced by Seal. Content that is not valid
// base64, is too short, or fails authentication is returned as-is so
// that plaintext or foreign frames still surface to the user.
func (c *Codec) Open(encoded string) string {
	if c == nil {
		return encoded
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) <= c.aead.NonceSize() {
		return encoded
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return encoded
	}
	return string(plaintext)
}
