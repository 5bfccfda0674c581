package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Route classes.
const (
	ClassGlobal          = "global"
	ClassLogin           = "login"
	ClassWalletVerify    = "wallet-verify"
	ClassWalletChallenge = "wallet-challenge"
	ClassRegister        = "register"
	ClassLink            = "wallet-link"
	ClassPasswordReset   = "password-reset"
	ClassEmailVerify     = "email-verify"
)

// UnknownIP is the bucket shared by every request that arrives without a
// client address.
const UnknownIP = "unknown"

const defaultKeyPrefix = "rl"

// Config holds rate limiter tuning parameters. KeyPrefix namespaces the Redis
// buckets and defaults to "rl".
type Config struct {
	Window    time.Duration
	GlobalMax int
	AuthMax   int
	KeyPrefix string
}

// Cap returns the per-window cap for class. Login and wallet verification use
// the tighter authentication cap.
func (c Config) Cap(class string) int {
	switch class {
	case ClassLogin, ClassWalletVerify:
		return c.AuthMax
	default:
		return c.GlobalMax
	}
}

// Limiter admits or rejects one request from ip in a route class. A rejected
// request returns [ErrRateLimited] and the time until the window resets.
type Limiter interface {
	Check(ctx context.Context, ip, class string) (time.Duration, error)
}

// RedisLimiter keeps buckets in Redis so every node shares them.
type RedisLimiter struct {
	window *Window
	config Config
}

// New creates a Redis-backed [RedisLimiter].
func New(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		window: NewWindow(redisClient),
		config: cfg,
	}
}

// Check implements [Limiter]. Requests with an empty ip share the
// [UnknownIP] bucket.
func (l *RedisLimiter) Check(ctx context.Context, ip, class string) (time.Duration, error) {
	return l.window.Enforce(ctx, l.config.bucketKey(class, ip), l.config.Window, l.config.Cap(class))
}

func (c Config) bucketKey(class, ip string) string {
	prefix := c.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ip == "" {
		ip = UnknownIP
	}
	return prefix + ":" + class + ":" + ip
}
