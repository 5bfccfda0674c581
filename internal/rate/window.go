package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const hitScript = `
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var hitLua = redis.NewScript(hitScript)

// Window is the Redis fixed-window counter primitive shared by the route-class
// limiter and the domain limiters.
type Window struct {
	redis redis.UniversalClient
}

// NewWindow wraps a Redis client.
func NewWindow(rdb redis.UniversalClient) *Window {
	return &Window{redis: rdb}
}

// Hit increments key, starting a window of length window on the first hit. It
// returns the post-increment count and the time left in the window.
func (w *Window) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := hitLua.Run(ctx, w.redis, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid window script response", ErrRedisUnavailable)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// Enforce is Hit followed by a cap check.
func (w *Window) Enforce(ctx context.Context, key string, window time.Duration, max int) (time.Duration, error) {
	count, ttl, err := w.Hit(ctx, key, window)
	if err != nil {
		return 0, err
	}
	if count > int64(max) {
		return ttl, ErrRateLimited
	}
	return 0, nil
}
