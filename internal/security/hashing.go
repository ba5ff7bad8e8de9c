package security

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnusablePassword is returned by Compare when the stored hash is an unusable-password marker.
var ErrUnusablePassword = errors.New("security: password is unusable")

// unusablePrefix matches domain.UnusablePasswordPrefix; bcrypt hashes never start with it.
const unusablePrefix = "!"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
	// MinLength is the shortest password Check accepts, counted in characters.
	MinLength int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31) and minimum password length.
// Non-positive minLength means 6.
func NewHasher(cost, minLength int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if minLength <= 0 {
		minLength = 6
	}
	return &Hasher{Cost: cost, MinLength: minLength}
}

// Check reports whether password satisfies the minimum length.
func (h *Hasher) Check(password string) bool {
	return utf8.RuneCountInString(password) >= h.MinLength
}

// Hash produces a bcrypt hash of password. Do not pass an empty password;
// use an unusable marker for accounts without one.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash using constant-time
// comparison. Returns nil if they match; returns an error (including
// bcrypt.ErrMismatchedHashAndPassword) if they do not or on invalid hash.
func (h *Hasher) Compare(hash string, password []byte) error {
	if hash == "" || strings.HasPrefix(hash, unusablePrefix) {
		return ErrUnusablePassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
