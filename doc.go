// Package auth implements the credential and session token core of the
// Classpad school portal: server-side sessions with an impersonation
// overlay, single-use password reset and impersonation tokens, and a
// session-scoped CSRF guard.
//
// Sessions:
//   - SessionManager owns the session lifecycle over a pluggable
//     SessionStore. An impersonation overlay keeps a pointer back to the
//     original principal; the first overlay wins for the lifetime of the
//     session, so switching impersonated identities can never escape to a
//     deeper origin.
//
// Single-use tokens:
//   - PasswordResetService and ImpersonationService issue opaque random
//     tokens with fixed TTLs and consume them through an atomic
//     check-and-set, so exactly one of any number of concurrent redeemers
//     succeeds. Validation deliberately collapses not-found, expired and
//     already-used into one generic failure to avoid token-state oracles.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the session
//     manager and token services to describe login, logout, reset and
//     impersonation events. Sinks run best-effort (errors are logged) so
//     you can forward to a database or queue without blocking the flow.
package auth
