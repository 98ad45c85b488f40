package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the production bcrypt work factor. Test and dev
// environments should construct a Hasher with a lower cost to keep
// suites fast.
const DefaultHashCost = 14

// Hasher is the credential hasher: an adaptively slow one-way transform
// with a configurable work factor. The zero value uses DefaultHashCost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. A cost of zero
// or less selects the build's default cost; out-of-range costs are
// clamped.
func NewHasher(cost int) Hasher {
	if cost <= 0 {
		cost = passwordHashCost()
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return Hasher{cost: cost}
}

// Cost returns the configured work factor.
func (h Hasher) Cost() int {
	if h.cost == 0 {
		return passwordHashCost()
	}
	return h.cost
}

// Hash generates an opaque digest for the secret.
func (h Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoEmptyPassword
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost())
	return string(digest), err
}

// Compare validates the cleartext secret against a stored digest.
// Mismatches and malformed digests both surface as
// ErrMismatchedHashAndPassword so the caller cannot distinguish them,
// and the underlying comparison runs in time independent of where a
// mismatch occurs.
func (h Hasher) Compare(secret, digest string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)); err != nil {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// HashPassword will generate a password hash using the default cost.
func HashPassword(password string) (string, error) {
	return NewHasher(0).Hash(password)
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password.
func ComparePasswordAndHash(password, hash string) error {
	return Hasher{}.Compare(password, hash)
}
