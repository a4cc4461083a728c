// ABOUTME: TokenService issuing and validating bearer tokens
// ABOUTME: Combines the JWT codec, the token store, and an injectable clock

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-auth/internal/store"
	"github.com/2389/fold-auth/internal/token"
)

// Service issues tokens for principals and validates presented tokens against
// signature, subject, expiry, and revocation state. The TTL and signing secret
// are fixed at construction and never change for the process lifetime.
type Service struct {
	codec  *token.Codec
	tokens store.TokenStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a token service with the given codec, token store, and
// token lifetime.
func NewService(codec *token.Codec, tokens store.TokenStore, ttl time.Duration) (*Service, error) {
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}
	return &Service{
		codec:  codec,
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default().With("component", "auth"),
	}, nil
}

// Issue creates, signs, and records a new bearer token for the principal.
func (s *Service) Issue(ctx context.Context, principal *Principal) (*store.Token, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	value, err := s.codec.Encode(token.Claims{
		Subject:   principal.Subject,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}

	tok := &store.Token{
		ID:        uuid.New().String(),
		Value:     value,
		Kind:      store.TokenKindBearer,
		Subject:   principal.Subject,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.RecordToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("recording token: %w", err)
	}

	s.logger.Info("issued token", "subject", principal.Subject, "expires_at", expiresAt.UTC().Format(time.RFC3339))
	return tok, nil
}

// Validate checks a presented token against the subject the caller is about
// to authenticate. All checks must pass: signature, subject equality, expiry
// against the service clock, and revocation state. Any failure means the
// token is not valid; the returned kind is for diagnostics only and must
// never reach a client response.
func (s *Service) Validate(ctx context.Context, raw, subject string) error {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return err
	}

	if claims.Subject != subject {
		return fmt.Errorf("%w: token is for a different subject", ErrSubjectMismatch)
	}

	if !s.now().Before(claims.ExpiresAt) {
		return fmt.Errorf("%w: expired at %v", ErrExpired, claims.ExpiresAt)
	}

	revoked, err := s.tokens.IsTokenRevoked(ctx, raw)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			// A token we never recorded cannot be trusted, signature or not
			return ErrUnknownToken
		}
		return fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return ErrRevoked
	}

	return nil
}

// ExtractSubject decodes the token and returns its embedded subject, or ""
// when the token is unreadable. Never fails: the gate treats an unreadable
// token as no credential at all.
func (s *Service) ExtractSubject(raw string) string {
	return s.codec.ExtractSubject(raw)
}

// Revoke marks the presented token revoked. Idempotent; revoking an unknown
// token is a no-op so logout never leaks whether a token was ever issued.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	return s.tokens.RevokeToken(ctx, raw)
}

// RevokeAll revokes every live token owned by the subject.
func (s *Service) RevokeAll(ctx context.Context, subject string) error {
	return s.tokens.RevokeSubjectTokens(ctx, subject)
}
