// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive authentication flows: email verification tokens,
// password reset tokens and the per-tenant wallet-user sequence.
//
// # Design
//
// Opaque tokens are never stored. Records are keyed by the token's SHA-256 and
// hold a small versioned binary body with a TTL. Consume reads and deletes the
// record in one Lua script, so a token is accepted at most once. Each user has
// at most one outstanding token per store; issuing a new one deletes the old.
//
// # What this package must NOT do
//
//   - Import tenantauth or any sibling internal package.
//   - Log or expose plaintext tokens.
package stores

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}
