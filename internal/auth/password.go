// Package auth holds the credential hasher, the session cookie manager and
// the route guard.
//
// Passwords are stored as bcrypt output. The salt and the work factor are
// embedded in the hash string, so the users table has a single column:
//
//	$2a$10$<22-char salt><31-char hash>
//	    ^^ cost: 2^10 rounds
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for every stored password.
const DefaultCost = 10

// maxSecretBytes is bcrypt's input limit.
const maxSecretBytes = 72

// PasswordService hashes and checks passwords. Tests build one with a low
// cost through NewPasswordServiceForTest.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with DefaultCost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: DefaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. Input over bcrypt's 72-byte
// limit is an error rather than being truncated.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxSecretBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxSecretBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A mismatch is (false, nil);
// only a hash bcrypt cannot parse is an error.
func (p *PasswordService) Verify(hash, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("auth: comparing password hash: %w", err)
	}
}
