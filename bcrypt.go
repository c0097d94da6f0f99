package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost trades hash time against login latency; 12 keeps a single
// verification under ~300ms on commodity hardware.
const bcryptCost = 12

// HashCredential will generate a password hash
func HashCredential(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	return string(h), err
}

// CompareCredentialAndHash will validate the given cleartext secret
// against the stored hash.
func CompareCredentialAndHash(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
