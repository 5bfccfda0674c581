// Package middleware exposes net/http bearer guards built on
// tenantauth.Engine token verification.
//
// # Guards
//
//   - [Guard] rejects requests without a valid bearer token.
//   - [RequireTenant] additionally pins the token to the tenant resolved for
//     the request.
//   - [Optional] attaches the identity when a valid token is present and lets
//     anonymous requests through.
//
// Each guard reads the Authorization header, calls the engine, and injects the
// verified identity into the request context. Rejections are written as the
// same JSON error envelope the httpapi package uses.
//
// This package translates HTTP semantics into Engine calls. It never parses
// tokens or touches Redis itself.
package middleware
