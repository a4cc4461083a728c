// ABOUTME: Store interfaces and data types for fold-auth persistence
// ABOUTME: Defines User and Token records and the UserStore/TokenStore contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a requested user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already registered")

// ErrTokenNotFound is returned when a token is not known to the store.
var ErrTokenNotFound = errors.New("token not found")

// ErrUnavailable wraps transient backing-store failures. Callers must treat it
// as an infrastructure error, never as "invalid credentials".
var ErrUnavailable = errors.New("store unavailable")

// TokenKindBearer is the only token kind issued today.
const TokenKindBearer = "bearer"

// Role is a user's coarse-grained role.
type Role string

// Role constants
const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// Authorities returns the fine-grained permissions granted by the role, used
// by downstream authorization checks.
func (r Role) Authorities() []string {
	switch r {
	case RoleAdmin:
		return []string{
			"admin:read", "admin:create", "admin:update", "admin:delete",
			"management:read", "management:create", "management:update", "management:delete",
		}
	case RoleManager:
		return []string{
			"management:read", "management:create", "management:update", "management:delete",
		}
	default:
		return nil
	}
}

// Valid reports whether the role is one of the known constants.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// User is a registered account. The email doubles as the token subject.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	FirstName    string
	LastName     string
	Role         Role
	CreatedAt    time.Time
}

// Token is one issued credential, tracked for revocation.
type Token struct {
	ID        string
	Value     string // the compact signed string
	Kind      string // always "bearer" today
	Subject   string // owning user's email
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// TokenStore defines the interface for issued-token tracking. Implementations
// must support concurrent reads and writes; last-writer-wins is acceptable for
// the revoked flag, which is the only field ever mutated.
type TokenStore interface {
	// RecordToken persists a newly issued token against its subject.
	RecordToken(ctx context.Context, token *Token) error

	// GetToken looks a token up by its signed string value.
	GetToken(ctx context.Context, value string) (*Token, error)

	// RevokeToken marks a token revoked. Idempotent; unknown tokens are a no-op.
	RevokeToken(ctx context.Context, value string) error

	// IsTokenRevoked reports the revocation state of a token.
	// Returns ErrTokenNotFound for tokens the store never recorded.
	IsTokenRevoked(ctx context.Context, value string) (bool, error)

	// RevokeSubjectTokens revokes every live token owned by the subject.
	RevokeSubjectTokens(ctx context.Context, subject string) error

	// DeleteExpiredTokens prunes tokens whose expiry is at or before now,
	// returning the number removed. Validation never depends on this running.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
