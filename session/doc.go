// Package session provides the Redis-backed session registry: session records,
// per-user session indexes and the token revocation set.
//
// # Binary encoding
//
// Sessions are stored as a compact length-prefixed binary record. The first
// byte is the schema version; [Decode] rejects versions it does not know.
//
// # Key layout
//
//	<prefix>:<sessionID>                      session record, PX = remaining lifetime
//	<prefix>:u:<tenantID>:<userID>            set of session IDs for the user
//	<prefix>:c:<tenantID>                     tenant-wide session counter
//	<prefix>:revoked:<userID>:<fingerprint>   revocation marker, PX = remaining token lifetime
//
// # What this package must NOT do
//
//   - Import tenantauth or jwt (no upward imports).
//   - Interpret bearer tokens beyond the opaque fingerprint it is given.
package session
