package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinBcryptCost is the lowest cost accepted for new hashes.
	MinBcryptCost = 12
	// MaxBcryptCost mirrors bcrypt's own upper bound.
	MaxBcryptCost = bcrypt.MaxCost
)

var (
	// ErrMalformedHash reports a stored hash that cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash reports a hash scheme this package does not verify.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrTooLong reports a password longer than bcrypt accepts.
	ErrTooLong = errors.New("password exceeds 72 bytes")
)

// Hasher produces bcrypt hashes and verifies bcrypt or legacy argon2id hashes.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a bcrypt hasher with the given cost.
func NewHasher(cost int) (*Hasher, error) {
	if cost < MinBcryptCost || cost > MaxBcryptCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", MinBcryptCost, MaxBcryptCost)
	}
	return &Hasher{cost: cost}, nil
}

// Cost returns the configured bcrypt cost.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxLength {
		return "", ErrTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// errors are reserved for unparseable hashes.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case IsArgon2Hash(encoded):
		return verifyArgon2(password, encoded)
	case isBcryptHash(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encoded should be replaced by a fresh Hash.
// Legacy argon2id hashes and bcrypt hashes below the configured cost qualify.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	if IsArgon2Hash(encoded) {
		return true, nil
	}
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < h.cost, nil
}

// Burn runs one comparison against a throwaway hash so that lookups for
// unknown accounts take as long as real ones.
func (h *Hasher) Burn(password string) {
	h.dummyOnce.Do(func() {
		var seed [16]byte
		_, _ = rand.Read(seed[:])
		out, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed[:])), h.cost)
		if err == nil {
			h.dummy = string(out)
		}
	})
	if h.dummy == "" {
		return
	}
	_ = bcrypt.CompareHashAndPassword([]byte(h.dummy), []byte(password))
}

func isBcryptHash(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
