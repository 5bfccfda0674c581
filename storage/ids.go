package storage

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idOnce sync.Once
	idMu   sync.Mutex
	idSrc  *ulid.MonotonicEntropy
)

// NewID returns a lexicographically sortable ULID for t. IDs generated within
// the same millisecond are strictly increasing.
func NewID(t time.Time) string {
	idOnce.Do(func() {
		idSrc = ulid.Monotonic(rand.Reader, 0)
	})

	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t.UTC()), idSrc).String()
}

// ValidID reports whether s is a canonical ULID.
func ValidID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// NormalizeSlug trims and lower-cases a tenant slug or domain.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
