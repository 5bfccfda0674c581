// Package rate provides fixed-window per-IP rate limiting for authentication
// route classes, with a Redis implementation for multi-node deployments and an
// in-process one for single-node use.
//
// # Window semantics
//
// Each (route class, IP) bucket starts its window on the first hit and resets
// once the window has elapsed. In Redis this is INCR plus PEXPIRE on the first
// hit, executed as one script. Key layout, with KeyPrefix defaulting to rl:
//   - <KeyPrefix>:<class>:<ip>
//
// Requests without a client address all count against the shared
// "unknown" bucket of their class.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the tenantauth module.
package rate
