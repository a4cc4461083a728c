// Package store provides persistent storage for fold-auth.
//
// # Architecture
//
// Two narrow interfaces cover the service's needs:
//
//   - UserStore: registered accounts, looked up by email
//   - TokenStore: issued bearer tokens and their revocation state
//
// SQLiteStore implements both in a single struct. RedisTokenStore is an
// alternative TokenStore for deployments that want token state off the local
// disk; it leans on Redis TTLs for expiry-based cleanup instead of an explicit
// sweep.
//
// # Error contract
//
// Lookups that miss return ErrUserNotFound / ErrTokenNotFound. Transient
// backend failures are wrapped in ErrUnavailable so callers can distinguish
// "infrastructure is down" from "credential is invalid" — the two must never
// collapse into each other.
package store
