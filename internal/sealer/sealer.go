// Package sealer encrypts small secrets, such as third-party OAuth tokens,
// before they are persisted. Sealed values have the form
// "<hex nonce>:<hex ciphertext>" and are authenticated with
// XChaCha20-Poly1305.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKey is returned for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("sealer: key must be 32 bytes")
	// ErrMalformed is returned when a sealed value cannot be parsed or authenticated.
	ErrMalformed = errors.New("sealer: malformed sealed value")
)

// Sealer seals and opens values with a fixed key. It is safe for
// concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a raw 32-byte key.
func New(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// NewFromHex builds a Sealer from a 64-character hex key.
func NewFromHex(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return New(key)
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ct), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	nonceHex, ctHex, ok := strings.Cut(sealed, ":")
	if !ok {
		return "", ErrMalformed
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != s.aead.NonceSize() {
		return "", ErrMalformed
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", ErrMalformed
	}
	pt, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(pt), nil
}
