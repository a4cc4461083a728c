// ABOUTME: Redis implementation of TokenStore using go-redis
// ABOUTME: Token records expire naturally via Redis TTL keyed to token expiry

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore implements TokenStore on Redis. Each token is stored as a
// JSON blob under its signed string value with a TTL matching the token's
// expiry, so expired entries are pruned by Redis itself. A per-subject set
// indexes live tokens for logout-all.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ TokenStore = (*RedisTokenStore)(nil)

// NewRedisTokenStore creates a token store backed by the given Redis client.
// prefix namespaces all keys, e.g. "foldauth".
func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "foldauth"
	}
	return &RedisTokenStore{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "store"),
	}
}

func (s *RedisTokenStore) tokenKey(value string) string {
	return s.prefix + ":tok:" + value
}

func (s *RedisTokenStore) subjectKey(subject string) string {
	return s.prefix + ":sub:" + subject
}

// RecordToken persists a newly issued token. Tokens already at or past their
// expiry are rejected rather than written with a non-positive TTL.
func (s *RedisTokenStore) RecordToken(ctx context.Context, token *Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token %s already expired at %v", token.ID, token.ExpiresAt)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token.Value), data, ttl)
		pipe.SAdd(ctx, s.subjectKey(token.Subject), token.Value)
		// Keep the index from outliving the longest-lived token in it
		pipe.Expire(ctx, s.subjectKey(token.Subject), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: recording token: %v", ErrUnavailable, err)
	}

	return nil
}

// GetToken looks a token up by its signed string value.
func (s *RedisTokenStore) GetToken(ctx context.Context, value string) (*Token, error) {
	data, err := s.client.Get(ctx, s.tokenKey(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: querying token: %v", ErrUnavailable, err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return &tok, nil
}

// RevokeToken marks a token revoked while preserving its remaining TTL.
// Unknown tokens are a no-op.
func (s *RedisTokenStore) RevokeToken(ctx context.Context, value string) error {
	tok, err := s.GetToken(ctx, value)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return err
	}
	if tok.Revoked {
		return nil
	}

	tok.Revoked = true
	return s.writeRevoked(ctx, tok)
}

// IsTokenRevoked reports the revocation state of a token.
func (s *RedisTokenStore) IsTokenRevoked(ctx context.Context, value string) (bool, error) {
	tok, err := s.GetToken(ctx, value)
	if err != nil {
		return false, err
	}
	return tok.Revoked, nil
}

// RevokeSubjectTokens revokes every live token owned by the subject.
//
// Not fully atomic: a token issued between the index read and the writes is
// not captured. The stray token expires naturally or is caught by the next
// call, matching the eventual-consistency contract for revocation.
func (s *RedisTokenStore) RevokeSubjectTokens(ctx context.Context, subject string) error {
	values, err := s.client.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: reading subject index: %v", ErrUnavailable, err)
	}

	var revoked int
	for _, value := range values {
		tok, err := s.GetToken(ctx, value)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				// Expired out from under the index; drop the stale entry
				_ = s.client.SRem(ctx, s.subjectKey(subject), value).Err()
				continue
			}
			return err
		}
		if tok.Revoked {
			continue
		}
		tok.Revoked = true
		if err := s.writeRevoked(ctx, tok); err != nil {
			return err
		}
		revoked++
	}

	if revoked > 0 {
		s.logger.Info("revoked subject tokens", "subject", subject, "count", revoked)
	}
	return nil
}

// writeRevoked rewrites a token blob in place, keeping its remaining TTL so a
// revoked token stays visible as revoked until it would have expired anyway.
func (s *RedisTokenStore) writeRevoked(ctx context.Context, tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := s.client.Set(ctx, s.tokenKey(tok.Value), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: revoking token: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteExpiredTokens prunes stale subject-index entries. The token blobs
// themselves are already dropped by Redis TTL; this keeps the per-subject
// sets from accumulating dead members between logins.
func (s *RedisTokenStore) DeleteExpiredTokens(ctx context.Context, _ time.Time) (int64, error) {
	var pruned int64

	iter := s.client.Scan(ctx, 0, s.prefix+":sub:*", 100).Iterator()
	for iter.Next(ctx) {
		subjectKey := iter.Val()
		values, err := s.client.SMembers(ctx, subjectKey).Result()
		if err != nil {
			return pruned, fmt.Errorf("%w: reading subject index: %v", ErrUnavailable, err)
		}
		for _, value := range values {
			exists, err := s.client.Exists(ctx, s.tokenKey(value)).Result()
			if err != nil {
				return pruned, fmt.Errorf("%w: checking token: %v", ErrUnavailable, err)
			}
			if exists == 0 {
				if err := s.client.SRem(ctx, subjectKey, value).Err(); err != nil {
					return pruned, fmt.Errorf("%w: pruning subject index: %v", ErrUnavailable, err)
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("%w: scanning subject indexes: %v", ErrUnavailable, err)
	}

	return pruned, nil
}

// Close releases the underlying Redis client.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
