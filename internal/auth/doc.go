// Package auth provides authentication for fold-auth.
//
// # Token lifecycle
//
// Service issues HS256-signed bearer tokens with a fixed TTL and validates
// presented tokens against four independent checks: signature, embedded
// subject versus the principal being authenticated, expiry against the
// service clock, and revocation state in the token store. Any single failure
// makes the token invalid with no partial credit.
//
// # The gate
//
// Middleware is the per-request authentication gate. It is deliberately
// non-judgmental: a request either gains a principal in its context or passes
// through unauthenticated, and the specific failure reason is only ever
// logged. Protected endpoints reject anonymous access via RequireAuth,
// RequireRole, or RequireAuthority. The gRPC interceptors apply the same
// state machine to RPC metadata.
//
// # Failure taxonomy
//
// Malformed, invalid-signature, expired, revoked, subject-mismatch, and
// unknown-principal failures all collapse into the unauthenticated outcome so
// responses cannot be used as an oracle for account existence or token
// structure. Backing-store outages are the one exception: they surface as
// server errors, because "infrastructure is down" must never masquerade as
// "bad credentials".
package auth
