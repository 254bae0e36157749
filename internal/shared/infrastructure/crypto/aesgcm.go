// Package crypto obfuscates stored licence values with AES-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// ErrTampered is returned when a sealed value fails authentication, either
// because it was edited or because it was sealed under another context.
var ErrTampered = errors.New("sealed value failed authentication")

// Sealer encrypts values bound to a context string.
type Sealer interface {
	Seal(plaintext, context string) (string, error)
	Open(sealed, context string) (string, error)
}

// AESSealer uses AES-GCM with the context as additional authenticated data,
// so a value copied onto another key no longer opens.
type AESSealer struct {
	aead cipher.AEAD
}

var _ Sealer = (*AESSealer)(nil)

// NewAESGCMFromBase64Key creates an AESSealer from a base64-encoded 32-byte key.
func NewAESGCMFromBase64Key(encodedKey string) (*AESSealer, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &AESSealer{aead: aead}, nil
}

// Seal encrypts plaintext, prepends the nonce and returns base64 text.
func (s *AESSealer) Seal(plaintext, context string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(context))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal for the same context.
func (s *AESSealer) Open(sealed, context string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Join(ErrTampered, err)
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrTampered
	}
	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(context))
	if err != nil {
		return "", ErrTampered
	}
	return string(plaintext), nil
}
