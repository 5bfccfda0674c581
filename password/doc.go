// Package password hashes, verifies and scores user passwords.
//
// # Output format
//
// New hashes are bcrypt ($2a$) with a cost of at least [MinBcryptCost]. Hashes in
// PHC argon2id format are still accepted by [Hasher.Verify]:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// and always report [Hasher.NeedsUpgrade] so the caller can re-hash them with
// bcrypt on the next successful login.
//
// # Policy
//
// [Score] rates a password from 0 to [MaxScore]; [Policy.Check] lists the rules a
// candidate fails.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other tenantauth package.
//   - Log plaintext passwords or hashes.
package password
