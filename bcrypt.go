package auth

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured
const DefaultHashCost = 12

// BcryptHasher hashes passwords with bcrypt using a fixed work factor
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = BcryptHasher{}

// NewBcryptHasher returns a hasher for the given cost. Values outside
// bcrypt's range fall back to the package default.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return BcryptHasher{cost: cost}
}

// Cost returns the work factor used for new hashes
func (h BcryptHasher) Cost() int {
	return h.cost
}

// Hash will generate a password hash
func (h BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(b), err
}

// Verify checks password against hash. The salt and cost are read from the
// stored hash; a malformed hash never matches.
func (h BcryptHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword will generate a password hash using the default cost
func HashPassword(password string) (string, error) {
	return NewBcryptHasher(0).Hash(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if !NewBcryptHasher(0).Verify(password, hash) {
		return ErrInvalidCredentials
	}
	return nil
}

// RandomPasswordHash is a hash nobody knows the password for. Used to keep
// credential checks for unknown emails as slow as real ones.
func RandomPasswordHash(cost int) string {
	h, err := NewBcryptHasher(cost).Hash(uuid.NewString())
	if err != nil {
		return RandomPasswordHash(cost)
	}
	return h
}
