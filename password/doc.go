// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports whether a stored hash was produced with weaker
// parameters than the current configuration, so callers can transparently
// re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy beyond the
// minimum length (reuse history, complexity rules) belongs to the caller.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters.
package password
