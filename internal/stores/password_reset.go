package stores

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// NewPasswordResetStore returns the store for password reset tokens.
func NewPasswordResetStore(redisClient redis.UniversalClient, namespace string, now func() time.Time) *TokenStore {
	return newTokenStore(redisClient, namespaced(namespace, "apr"), now)
}
