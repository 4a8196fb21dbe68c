// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Argon2] hasher supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters, [Argon2.NeedsUpgrade] returns true so the caller
// can re-hash on the next successful login.
//
// [Argon2.VerifyDummy] verifies against a hash precomputed at construction so
// that a login for an unknown account costs the same as a real one.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length, reuse
// history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other goIdentity package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
