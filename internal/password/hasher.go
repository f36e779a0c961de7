// Package password hashes and verifies plaintext passwords with bcrypt.
//
// Hashes are self-describing ("$2a$<cost>$<salt><digest>"), so verification
// needs nothing but the stored string.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		// bcrypt errors never include the input.
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a
// mismatch, not an error.
func (h *BcryptHasher) Verify(plaintext string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
