package rate

import "errors"

var (
	// ErrRateLimited is returned when a bucket is over its cap.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
