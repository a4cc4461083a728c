// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers user CRUD, token recording, revocation, and expiry cleanup

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testToken(value, subject string, ttl time.Duration) *Token {
	now := time.Now().UTC().Truncate(time.Second)
	return &Token{
		ID:        "tok-" + value,
		Value:     value,
		Kind:      TokenKindBearer,
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{
		ID:           "user-123",
		Email:        "a@x.com",
		PasswordHash: "$2a$10$fakehash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         RoleAdmin,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
	if got.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, RoleAdmin)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, user.PasswordHash)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{ID: "user-1", Email: "dup@x.com", PasswordHash: "h", Role: RoleUser, CreatedAt: time.Now()}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dup := &User{ID: "user-2", Email: "dup@x.com", PasswordHash: "h", Role: RoleUser, CreatedAt: time.Now()}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Errorf("CreateUser error = %v, want ErrEmailExists", err)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetUserByEmail(context.Background(), "missing@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByEmail error = %v, want ErrUserNotFound", err)
	}
}

func TestRecordAndGetToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := testToken("value-abc", "a@x.com", time.Hour)
	if err := s.RecordToken(ctx, tok); err != nil {
		t.Fatalf("RecordToken failed: %v", err)
	}

	got, err := s.GetToken(ctx, "value-abc")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.Subject != "a@x.com" {
		t.Errorf("Subject = %q, want %q", got.Subject, "a@x.com")
	}
	if got.Kind != TokenKindBearer {
		t.Errorf("Kind = %q, want %q", got.Kind, TokenKindBearer)
	}
	if got.Revoked {
		t.Error("new token should not be revoked")
	}
	if !got.ExpiresAt.After(got.IssuedAt) {
		t.Error("expiry should be after issuance")
	}
}

func TestGetToken_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetToken(context.Background(), "missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetToken error = %v, want ErrTokenNotFound", err)
	}
}

func TestRevokeToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := testToken("value-rev", "a@x.com", time.Hour)
	if err := s.RecordToken(ctx, tok); err != nil {
		t.Fatalf("RecordToken failed: %v", err)
	}

	revoked, err := s.IsTokenRevoked(ctx, "value-rev")
	if err != nil {
		t.Fatalf("IsTokenRevoked failed: %v", err)
	}
	if revoked {
		t.Error("token should not start revoked")
	}

	if err := s.RevokeToken(ctx, "value-rev"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	revoked, err = s.IsTokenRevoked(ctx, "value-rev")
	if err != nil {
		t.Fatalf("IsTokenRevoked failed: %v", err)
	}
	if !revoked {
		t.Error("token should be revoked")
	}

	// Revoking again is a no-op
	if err := s.RevokeToken(ctx, "value-rev"); err != nil {
		t.Errorf("second RevokeToken failed: %v", err)
	}

	// Unknown token is a no-op, not an error
	if err := s.RevokeToken(ctx, "never-issued"); err != nil {
		t.Errorf("RevokeToken(unknown) failed: %v", err)
	}
}

func TestIsTokenRevoked_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.IsTokenRevoked(context.Background(), "missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("IsTokenRevoked error = %v, want ErrTokenNotFound", err)
	}
}

func TestRevokeSubjectTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"s1", "s2", "s3"} {
		if err := s.RecordToken(ctx, testToken(v, "a@x.com", time.Hour)); err != nil {
			t.Fatalf("RecordToken(%s) failed: %v", v, err)
		}
	}
	if err := s.RecordToken(ctx, testToken("other", "b@x.com", time.Hour)); err != nil {
		t.Fatalf("RecordToken failed: %v", err)
	}

	if err := s.RevokeSubjectTokens(ctx, "a@x.com"); err != nil {
		t.Fatalf("RevokeSubjectTokens failed: %v", err)
	}

	for _, v := range []string{"s1", "s2", "s3"} {
		revoked, err := s.IsTokenRevoked(ctx, v)
		if err != nil {
			t.Fatalf("IsTokenRevoked(%s) failed: %v", v, err)
		}
		if !revoked {
			t.Errorf("token %s should be revoked", v)
		}
	}

	revoked, err := s.IsTokenRevoked(ctx, "other")
	if err != nil {
		t.Fatalf("IsTokenRevoked(other) failed: %v", err)
	}
	if revoked {
		t.Error("other subject's token should not be revoked")
	}
}

func TestDeleteExpiredTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	expired := &Token{
		ID: "tok-old", Value: "old", Kind: TokenKindBearer, Subject: "a@x.com",
		IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	live := testToken("live", "a@x.com", time.Hour)

	if err := s.RecordToken(ctx, expired); err != nil {
		t.Fatalf("RecordToken failed: %v", err)
	}
	if err := s.RecordToken(ctx, live); err != nil {
		t.Fatalf("RecordToken failed: %v", err)
	}

	n, err := s.DeleteExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredTokens failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d tokens, want 1", n)
	}

	if _, err := s.GetToken(ctx, "old"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expired token should be gone, got err = %v", err)
	}
	if _, err := s.GetToken(ctx, "live"); err != nil {
		t.Errorf("live token should survive cleanup, got err = %v", err)
	}
}
