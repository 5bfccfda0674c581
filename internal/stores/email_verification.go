package stores

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// NewEmailVerificationStore returns the store for email verification tokens.
// namespace, when set, prefixes every key.
func NewEmailVerificationStore(redisClient redis.UniversalClient, namespace string, now func() time.Time) *TokenStore {
	return newTokenStore(redisClient, namespaced(namespace, "aev"), now)
}
