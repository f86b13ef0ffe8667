// Package crypto seals short secrets with AES-256-GCM before they are
// persisted.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var ErrMalformed = errors.New("crypto: malformed ciphertext")

// Sealer encrypts values bound to a context string. A value sealed for one
// context cannot be opened for another.
type Sealer interface {
	Seal(plaintext, boundTo string) (string, error)
	Open(ciphertext, boundTo string) (string, error)
}

type sealer struct {
	aead cipher.AEAD
}

// NewSealer takes a base64 encoded 256 bit key.
func NewSealer(keyStr string) (Sealer, error) {
	if keyStr == "" {
		return nil, errors.New("encryption key is required")
	}
	key, err := base64.StdEncoding.DecodeString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) Seal(plaintext, boundTo string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(boundTo))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *sealer) Open(ciphertext, boundTo string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return "", ErrMalformed
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], []byte(boundTo))
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plain), nil
}
