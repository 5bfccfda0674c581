// Package tenantauth is a multi-tenant identity engine that authenticates users
// either with an email and password or with an Ethereum wallet signature
// (EIP-191 personal_sign), and issues HS256 bearer tokens bound to a
// Redis-backed session.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tenantauth is the public surface. It exposes [Engine], [Builder], [Config], [AuthError]
// and the persistence ports ([UserRepository], [TenantRepository], [EmailNotifier]).
// Flow orchestration, rate limiting, lockout policy, audit dispatch and token stores live
// under internal/. Wallet recovery, password hashing, token codec, challenge store and
// session registry are importable sub-packages.
//
// # Tenancy
//
// Every user, challenge and session belongs to exactly one tenant. A bearer token is only
// accepted for the tenant it was issued in, and an email or wallet address is unique per
// tenant, never globally.
//
// # Failure model
//
// Every error returned by an Engine method is an [*AuthError] carrying one of a closed set
// of kinds and a stable wire code. Persistence failures never leak driver text to callers.
package tenantauth
