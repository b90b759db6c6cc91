package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "enc:v1:"

var hkdfInfo = []byte("wishlist-backend/session-token/v1")

// ErrInvalidCiphertext signals a sealed value that cannot be opened with the configured key.
var ErrInvalidCiphertext = errors.New("invalid sealed token")

// TokenSealer encrypts Admin API tokens before they are written to the sessions table.
// A sealer built without a key passes values through unchanged.
type TokenSealer struct {
	key []byte
}

// NewTokenSealer derives a 256-bit key from secret. An empty secret disables sealing.
func NewTokenSealer(secret string) (*TokenSealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenSealer{}, nil
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("token encryption key must be at least 16 characters")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &TokenSealer{key: key}, nil
}

// Enabled reports whether values are encrypted at rest.
func (s *TokenSealer) Enabled() bool {
	return s != nil && len(s.key) > 0
}

// Seal encrypts plaintext and returns a prefixed, base64 encoded value.
func (s *TokenSealer) Seal(plaintext string) (string, error) {
	if !s.Enabled() || plaintext == "" {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix are legacy
// plaintext rows and are returned as-is.
func (s *TokenSealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if !s.Enabled() {
		return "", fmt.Errorf("%w: no encryption key configured", ErrInvalidCiphertext)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
