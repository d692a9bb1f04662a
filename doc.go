// Package authcore is a stateless authentication and authorization core: it
// issues and validates signed access/refresh/session token triples, revokes
// them through a Redis-backed TTL denylist instead of a session table,
// verifies one-time codes for passwordless and step-up flows, and resolves
// group-based permissions.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// value types ([Principal], [TokenSet], [LogoutResult]) and the sentinel error
// taxonomy. Token mechanics live in the token subpackage, permission
// aggregation in rbac, and all coordination (flow orchestration, denylist and
// OTP storage, rate limiting, audit dispatch) under internal/.
//
// # What this package must NOT do
//
//   - Persist tokens or sessions anywhere. Tokens exist only as signed strings
//     held by clients; the denylist marks revocations and self-expires.
//   - Expose Redis clients or internal stores in its public API.
//   - Talk to the user or permission database directly. Both are injected
//     behind [UserStore] and [rbac.Store].
//
// # Availability contract
//
// Authenticate is the hot path. Revocation reads fail open by default: a Redis
// error during Authenticate is treated as "not revoked" (logged, counted,
// audited) so that a cache outage does not take down all authentication.
// Revocation writes (Logout, RotateRefresh) fail closed and report partial
// success explicitly.
package authcore
