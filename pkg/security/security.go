// Package security provides symmetric encryption for credentials at rest.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// Cipher encrypts and decrypts credential strings with AES-256-GCM. The
// nonce is prepended to the ciphertext and the whole value is base64-encoded
// for storage in text columns.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a key string. A base64-encoded 32-byte key
// is used directly; any other non-empty string is stretched to 32 bytes with
// SHA-256.
func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key must not be empty")
	}

	keyBytes := deriveKey(key)

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

func deriveKey(key string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded
	}
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// Encrypt encrypts a password for storage. Empty input stays empty so
// passwordless profiles round-trip unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure to decode or authenticate returns
// the input unchanged so passwords stored in plaintext before encryption
// was introduced keep working.
func (c *Cipher) Decrypt(value string) string {
	if value == "" {
		return ""
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return value
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) <= nonceSize {
		return value
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return value
	}

	return string(plaintext)
}

// defaultCipher is the process-wide cipher configured at startup.
var defaultCipher *Cipher

// Initialize sets up the package-level cipher from the configured key.
func Initialize(key string) error {
	c, err := NewCipher(key)
	if err != nil {
		return err
	}
	defaultCipher = c
	return nil
}

// EncryptPassword encrypts with the package-level cipher. It fails when
// Initialize has not run rather than silently storing plaintext.
func EncryptPassword(plaintext string) (string, error) {
	if defaultCipher == nil {
		return "", fmt.Errorf("security: cipher not initialized")
	}
	return defaultCipher.Encrypt(plaintext)
}

// DecryptPassword decrypts with the package-level cipher, falling back to
// the raw value when no cipher is configured or decryption fails.
func DecryptPassword(value string) string {
	if defaultCipher == nil {
		return value
	}
	return defaultCipher.Decrypt(value)
}
