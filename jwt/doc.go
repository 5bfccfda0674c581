// Package jwt issues and verifies HS256 access tokens that carry a tenant-scoped
// session reference, with an optional revocation hook keyed by token fingerprint.
package jwt
