package rate

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

type bucket struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter keeps buckets in process memory. It suits single-node
// deployments and tests; buckets are not shared across processes.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

// NewMemory creates an in-process [MemoryLimiter]. now defaults to time.Now.
func NewMemory(cfg Config, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		config:  cfg,
		now:     now,
		buckets: make(map[string]*bucket),
	}
}

// Check implements [Limiter]. Requests with an empty ip share the
// [UnknownIP] bucket.
func (l *MemoryLimiter) Check(_ context.Context, ip, class string) (time.Duration, error) {
	now := l.now()
	key := l.config.bucketKey(class, ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.config.Window {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	b.count++
	if b.count > l.config.Cap(class) {
		return b.windowStart.Add(l.config.Window).Sub(now), ErrRateLimited
	}
	return 0, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.config.Window {
			delete(l.buckets, key)
		}
	}
}

// Len reports the number of tracked buckets.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
