package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input beyond 72 bytes; reject instead of truncating.
const maxPasswordLength = 72

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	if len(password) > maxPasswordLength {
		return "", errors.New("password is too long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash in
// constant time.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
