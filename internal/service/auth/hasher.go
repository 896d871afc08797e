package auth

import (
	"crypto/sha256"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/bilitade/hubbo/internal/apperrors"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate hash from password
	// Must enforce the strength policy before hashing
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Minimal password strength requirements
const minPasswordLen = 8

// Bcrypt password hasher with a strength policy.
// The sha256 pre-hash lifts bcrypt's 72 byte input limit.
type BcryptHasher struct{}

var DefaultHasher PasswordHasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	if err := checkStrength(password); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}

// checkStrength reports every failed requirement at once so the user can fix
// the password in one go.
func checkStrength(password string) error {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	var missing []string
	if len(password) < minPasswordLen {
		missing = append(missing, "min length 8")
	}
	if !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "digit")
	}

	if len(missing) > 0 {
		return &apperrors.WeakPasswordError{Missing: missing}
	}
	return nil
}
