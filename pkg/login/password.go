package login

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes the plain-text password using bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPasswordHash compares the plain-text password with the stored hashed
// password. bcrypt's comparison is constant-time over the derived key.
func CheckPasswordHash(password, hashedPassword string) bool {
	if password == "" || hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// dummyHash is compared against when no account matches the email, so the
// unknown-email and wrong-password paths cost the same.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("streampanel-dummy-credential"), bcrypt.DefaultCost)

// EqualizeTiming burns a bcrypt comparison for the unknown-email path.
func EqualizeTiming(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
