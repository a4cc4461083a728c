// ABOUTME: Validation failure taxonomy for token authentication
// ABOUTME: Distinguishes failure kinds for logging while collapsing them at the gate

package auth

import (
	"errors"

	"github.com/2389/fold-auth/internal/store"
	"github.com/2389/fold-auth/internal/token"
)

// Validation failure kinds. These exist for internal diagnostics only; the
// gate collapses all of them into a single unauthenticated outcome so the
// client response never reveals which check failed.
var (
	ErrExpired         = errors.New("token expired")
	ErrRevoked         = errors.New("token revoked")
	ErrSubjectMismatch = errors.New("token subject mismatch")
	ErrUnknownToken    = errors.New("token not on record")

	// ErrInvalidCredentials is the single opaque login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsAuthFailure reports whether err is a credential problem that the gate
// must collapse into "unauthenticated". Infrastructure failures such as
// store.ErrUnavailable are deliberately excluded: they surface as server
// errors, never as bad credentials.
func IsAuthFailure(err error) bool {
	switch {
	case errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrInvalidSignature),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrRevoked),
		errors.Is(err, ErrSubjectMismatch),
		errors.Is(err, ErrUnknownToken),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrTokenNotFound):
		return true
	}
	return false
}
