// Package token implements the signed claim-set codec and the issuer that
// mints cooperating access/refresh/session token triples.
//
// # Design
//
// One shared secret, one HMAC algorithm fixed at construction. The codec knows
// nothing about revocation or business rules: it encodes, decodes, and
// verifies. Decoding tries strict audience verification first and retries
// leniently only when the failure is audience-related, so tokens minted before
// the audience convention changed keep working without opening a blanket
// catch-all.
//
// # What this package must NOT do
//
//   - Touch Redis or any store.
//   - Import authcore or internal packages (no import cycles).
package token
