// Package secret provides at-rest encryption for credentials the gateway
// stores on behalf of users: catalog tool credentials, OAuth refresh tokens,
// and API token secrets.
package secret

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Vault encrypts and decrypts opaque secret material at rest.
type Vault interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// AESGCMVault is a Vault backed by a single AES-256-GCM key held in memory.
// It is the gateway's default vault implementation; a KMS-backed Vault can
// be substituted behind the same interface without touching call sites.
type AESGCMVault struct {
	gcm cipher.AEAD
}

// NewAESGCMVault builds a vault from a 32-byte AES-256 key. It rejects keys
// that are obviously not cryptographically random, the same checks the
// teacher's serve command ran against its OAuth encryption key flag.
func NewAESGCMVault(key []byte) (*AESGCMVault, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM mode: %w", err)
	}

	return &AESGCMVault{gcm: gcm}, nil
}

// Encrypt seals plaintext, prefixing the ciphertext with a freshly generated
// nonce so Decrypt is self-contained.
func (v *AESGCMVault) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return v.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt, reading the nonce back out of the ciphertext
// prefix.
func (v *AESGCMVault) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	nonceSize := v.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext))
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

// ValidateKey checks an AES-256 key for the security weaknesses a
// misconfigured deployment commonly produces: wrong length, all-zero key,
// or low-entropy repeated patterns.
func ValidateKey(key []byte) error {
	if len(key) != 32 {
		return fmt.Errorf("encryption key must be exactly 32 bytes, got %d bytes", len(key))
	}

	allZero := true
	for _, b := range key {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("encryption key is all zeros - use a cryptographically secure random key (openssl rand -base64 32)")
	}

	uniqueBytes := make(map[byte]bool)
	for _, b := range key {
		uniqueBytes[b] = true
	}
	if len(uniqueBytes) < 16 {
		return fmt.Errorf("encryption key appears to have low entropy (only %d unique bytes) - use a cryptographically secure random key (openssl rand -base64 32)", len(uniqueBytes))
	}

	return nil
}
