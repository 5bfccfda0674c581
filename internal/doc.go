// Package internal contains helpers private to tenantauth: secure random
// identifiers and the hashing applied to opaque tokens before they are stored.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - limiters: lockout policy and the registration throttle
//   - rate: fixed-window per-IP rate limiting (Redis and in-process)
//   - stores: verification, reset and wallet-sequence Redis stores
package internal
