package limiters

import "time"

// LockoutPolicy locks an account for Duration once Threshold consecutive
// password failures have been recorded.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// IsLocked reports whether lockedUntil is still in the future at now.
func (p LockoutPolicy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// Rule returns the threshold and the lock expiry to apply if a failure at now
// reaches it.
func (p LockoutPolicy) Rule(now time.Time) (int, time.Time) {
	return p.Threshold, now.Add(p.Duration)
}

// NextAttempts is the counter value after one more failure. A lock that has
// already elapsed restarts the count.
func (p LockoutPolicy) NextAttempts(current int, lockedUntil *time.Time, now time.Time) int {
	if lockedUntil != nil && !lockedUntil.After(now) {
		return 1
	}
	return current + 1
}

// Reached reports whether attempts triggers a lock.
func (p LockoutPolicy) Reached(attempts int) bool {
	return p.Threshold > 0 && attempts >= p.Threshold
}
