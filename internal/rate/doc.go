// Package rate provides Redis-backed fixed-window rate limiting for the
// credential-facing flows: login attempts and OTP issuance/verification.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  login per-identifier
//   - ali: login per-IP
//   - ao:  OTP issuance per-identifier
//   - aov: OTP verification per-identifier
//
// # What this package must NOT do
//
//   - Decide which flows are throttled; the engine gates by configuration.
//   - Be imported outside the authcore module.
package rate
