// Package middleware exposes net/http middleware built on top of
// authcore.Engine authentication.
//
// # Guards
//
//   - [Require] extracts a token, authenticates it, injects the principal.
//   - [RequirePermission] is Require plus an RBAC permission check.
//
// Tokens are looked up in a fixed order: the X-Session-Token header, the
// Authorization Bearer header, then the token query parameter. The request
// origin offered for origin binding comes from the Origin header when
// present, otherwise from the request host, with X-Forwarded-Host as the
// last resort.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It makes no
// authentication or authorization decisions of its own.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly.
//   - Access Redis or any user store.
//   - Distinguish rejection reasons in responses beyond 401 and 403.
package middleware
