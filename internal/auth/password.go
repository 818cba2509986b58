package auth

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// PasswordParams configures Argon2id cost parameters. DefaultPasswordParams
// supplies the values used for interactive logins.
type PasswordParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordParams are suitable for an interactive login path.
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// HashPassword hashes a plaintext password with Argon2id under params.
func HashPassword(password string, params PasswordParams) (string, error) {
	hash, err := argon2id.CreateHash(password, &argon2id.Params{
		Memory:      params.Memory,
		Iterations:  params.Iterations,
		Parallelism: params.Parallelism,
		SaltLength:  params.SaltLength,
		KeyLength:   params.KeyLength,
	})
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword reports whether password matches the given Argon2id hash.
func VerifyPassword(password, hash string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return match, nil
}

// NeedsRehash reports whether hash was produced with parameters other than
// params, so the caller can transparently upgrade it on next successful
// login.
func NeedsRehash(hash string, params PasswordParams) bool {
	decoded, salt, key, err := argon2id.DecodeHash(hash)
	if err != nil {
		return false
	}
	return decoded.Memory != params.Memory ||
		decoded.Iterations != params.Iterations ||
		decoded.Parallelism != params.Parallelism ||
		uint32(len(salt)) != params.SaltLength ||
		uint32(len(key)) != params.KeyLength
}
