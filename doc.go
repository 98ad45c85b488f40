// Package identity provides account lifecycle primitives (bcrypt
// credential hashing, database-backed sessions, one-time activation
// tokens) plus the HTTP surface to drive them.
//
// Capability model:
//   - Users carry a Features column that is persisted via Bun as a JSON
//     list of capability strings. A fresh account holds only
//     read:activation_token; redeeming its activation token replaces
//     the whole set with the activated baseline (create:session,
//     read:session). Sets are swapped wholesale, never merged, so a
//     user's capabilities always describe exactly one lifecycle stage.
//   - Anonymous requests carry their own implicit set (register, log
//     in, redeem activation tokens) without touching the database.
//
// Sessions:
//   - Session tokens are opaque random values stored server side; the
//     token is the bearer credential and lives in the session_id
//     cookie. Every authenticated request slides the expiry window
//     forward. Logout forces the expiry into the past rather than
//     deleting the row, so revocation leaves an audit trail.
//
// Request identities:
//   - ResolvePrincipal turns the session cookie into a Principal on the
//     request context. Missing or invalid cookies yield an anonymous
//     principal; handlers gate themselves with RequireCapability or the
//     pure Can/Require helpers.
package identity
