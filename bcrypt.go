package signup

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be an empty string")

// BcryptHasher hashes passwords with bcrypt
type BcryptHasher struct {
	Cost int
}

// HashPassword implements PasswordHasher
func (b BcryptHasher) HashPassword(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = passwordHashCost
	}
	return hashPassword(password, cost)
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return hashPassword(password, passwordHashCost)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}
