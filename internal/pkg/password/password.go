package password

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minLength = 8

// MaxLength is the bcrypt input limit in bytes. Longer passwords are rejected
// by ValidateComplexity so Hash never sees them.
const MaxLength = 72

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = bcrypt.DefaultCost

// SpecialCharacters is the set a password must draw at least one rune from.
const SpecialCharacters = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

// ValidateComplexity reports whether candidate is between 8 and 72 bytes long
// and mixes lowercase, uppercase, digit and special characters.
func ValidateComplexity(candidate string) bool {
	if len(candidate) < minLength || len(candidate) > MaxLength {
		return false
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(SpecialCharacters, r):
			hasSpecial = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSpecial
}

// Hasher produces and checks bcrypt hashes with a fixed cost.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares plaintext against a stored hash.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
