// Package stores provides the Redis-backed, TTL-bound stores of the auth
// core: the revocation denylist and the one-time-code store.
//
// # Design
//
// Both stores hold only self-expiring entries. The denylist is pure absence
// semantics: a key that is not present means "not revoked". Raw tokens are
// never written; token-scope keys are SHA-256 digests so cache inspection
// cannot leak credentials and key size stays bounded. OTP consumption uses a
// Lua GET-compare-DEL script so a code cannot be spent twice even under
// concurrent verification attempts.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Decide revocation policy. Which scopes to write, in which order to
//     read them, and how to treat Redis errors belongs to internal/flows.
//   - Store plaintext tokens or log secrets.
package stores
