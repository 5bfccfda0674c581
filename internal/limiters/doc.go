// Package limiters provides the domain policies layered over internal/rate.
//
// # Limiters
//
//   - [LockoutPolicy]: consecutive password failures lock an account. The
//     counter lives on the user record, so the policy itself is pure.
//   - [RegistrationLimiter]: per-identifier and per-IP throttle for sign-ups.
//   - [PasswordResetLimiter]: per-identifier and per-IP throttle for reset
//     requests and confirmations.
//
// Redis-backed limiters are nil-safe: calling any method on a nil receiver
// returns nil.
//
// # What this package must NOT do
//
//   - Import tenantauth or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}
