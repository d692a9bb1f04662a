// Package flows implements the ordered, stateful parts of the auth core: the
// token validation state machine, refresh rotation, and logout revocation.
//
// # Design
//
// Each flow takes a Deps struct wired once by the root engine, classifies its
// outcome as a FailureKind, and never returns host-level sentinel errors;
// the root package maps kinds onto its public taxonomy. The revocation read
// order inside RunValidate is load-bearing: cheapest and most commonly hit
// checks run first, and the order is part of the package contract.
//
// # What this package must NOT do
//
//   - Import authcore (no import cycles).
//   - Emit metrics or audit events directly; the engine observes outcomes.
//   - Decide fail-open policy on its own; Deps carries the switch.
package flows
