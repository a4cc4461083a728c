// ABOUTME: SQLite implementation of UserStore and TokenStore using modernc.org/sqlite
// ABOUTME: Provides user and token persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements UserStore and TokenStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ UserStore  = (*SQLiteStore)(nil)
	_ TokenStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			value TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL DEFAULT 'bearer',
			subject TEXT NOT NULL,
			issued_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_tokens_subject
			ON tokens(subject);

		CREATE INDEX IF NOT EXISTS idx_tokens_expires_at
			ON tokens(expires_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser creates a new user. Returns ErrEmailExists when the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("%w: inserting user: %v", ErrUnavailable, err)
	}

	s.logger.Info("created user", "id", user.ID, "email", user.Email, "role", user.Role)
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, created_at
		FROM users
		WHERE email = ?
	`

	var user User
	var roleStr, createdAtStr string
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&roleStr,
		&createdAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: querying user: %v", ErrUnavailable, err)
	}

	user.Role = Role(roleStr)
	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// RecordToken persists a newly issued token.
func (s *SQLiteStore) RecordToken(ctx context.Context, token *Token) error {
	query := `
		INSERT INTO tokens (id, value, kind, subject, issued_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.Value,
		token.Kind,
		token.Subject,
		token.IssuedAt.UTC().Format(time.RFC3339),
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Revoked),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting token: %v", ErrUnavailable, err)
	}

	return nil
}

// GetToken looks a token up by its signed string value.
func (s *SQLiteStore) GetToken(ctx context.Context, value string) (*Token, error) {
	query := `
		SELECT id, value, kind, subject, issued_at, expires_at, revoked
		FROM tokens
		WHERE value = ?
	`

	var tok Token
	var issuedAtStr, expiresAtStr string
	var revoked int
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&tok.ID,
		&tok.Value,
		&tok.Kind,
		&tok.Subject,
		&issuedAtStr,
		&expiresAtStr,
		&revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: querying token: %v", ErrUnavailable, err)
	}

	tok.Revoked = revoked != 0
	tok.IssuedAt, err = time.Parse(time.RFC3339, issuedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing issued_at: %w", err)
	}
	tok.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &tok, nil
}

// RevokeToken marks a token revoked. Revoking an already-revoked or unknown
// token is a no-op.
func (s *SQLiteStore) RevokeToken(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE value = ?`, value)
	if err != nil {
		return fmt.Errorf("%w: revoking token: %v", ErrUnavailable, err)
	}
	return nil
}

// IsTokenRevoked reports whether the token has been revoked.
func (s *SQLiteStore) IsTokenRevoked(ctx context.Context, value string) (bool, error) {
	var revoked int
	err := s.db.QueryRowContext(ctx, `SELECT revoked FROM tokens WHERE value = ?`, value).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrTokenNotFound
		}
		return false, fmt.Errorf("%w: querying token: %v", ErrUnavailable, err)
	}
	return revoked != 0, nil
}

// RevokeSubjectTokens revokes every token owned by the subject.
func (s *SQLiteStore) RevokeSubjectTokens(ctx context.Context, subject string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE subject = ? AND revoked = 0`, subject)
	if err != nil {
		return fmt.Errorf("%w: revoking subject tokens: %v", ErrUnavailable, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("revoked subject tokens", "subject", subject, "count", n)
	}
	return nil
}

// DeleteExpiredTokens removes tokens whose expiry is at or before now.
func (s *SQLiteStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at <= ?`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting expired tokens: %v", ErrUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "unique constraint"))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
