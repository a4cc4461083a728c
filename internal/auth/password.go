// ABOUTME: Username/password verification against the user store
// ABOUTME: bcrypt comparison with constant-time behavior for unknown accounts

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/fold-auth/internal/store"
)

// dummyHash is compared against when the account doesn't exist, so a login
// attempt takes the same time whether or not the email is registered.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CredentialAuthenticator verifies email/password logins against the user
// store and produces the principal for the session being opened.
type CredentialAuthenticator struct {
	users  store.UserStore
	logger *slog.Logger
}

// NewCredentialAuthenticator creates an authenticator backed by the given
// user store.
func NewCredentialAuthenticator(users store.UserStore) *CredentialAuthenticator {
	return &CredentialAuthenticator{
		users:  users,
		logger: slog.Default().With("component", "auth"),
	}
}

// Verify checks the password for the account and returns its principal.
// Unknown account and wrong password both return ErrInvalidCredentials;
// callers must not distinguish them in any client-visible way.
func (a *CredentialAuthenticator) Verify(ctx context.Context, email, password string) (*Principal, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Dummy comparison to maintain constant timing
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			a.logger.Warn("login failure", "reason", "unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Warn("login failure", "reason", "password mismatch", "subject", email)
		return nil, ErrInvalidCredentials
	}

	return NewPrincipal(user), nil
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
