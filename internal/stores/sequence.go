package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrSequenceRedisUnavailable = errors.New("sequence redis unavailable")

// WalletUserSequence hands out the per-tenant ordinal used in generated
// display names. Values start at 1 and never repeat within a tenant.
type WalletUserSequence struct {
	redis  redis.UniversalClient
	prefix string
}

func NewWalletUserSequence(redisClient redis.UniversalClient, namespace string) *WalletUserSequence {
	return &WalletUserSequence{redis: redisClient, prefix: namespaced(namespace, "wus")}
}

func (s *WalletUserSequence) Next(ctx context.Context, tenantID string) (int64, error) {
	n, err := s.redis.Incr(ctx, s.prefix+":"+normalizeTenantID(tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSequenceRedisUnavailable, err)
	}
	return n, nil
}
