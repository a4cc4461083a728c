// ABOUTME: JWT encoding and decoding for bearer access tokens
// ABOUTME: HS256 signing with a process-wide secret loaded at startup

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec errors
var (
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// MinSecretLength is the minimum HS256 secret size in bytes.
// Anything shorter is trivially brute-forceable.
const MinSecretLength = 32

// Claims is the decoded payload of a signed token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec encodes and decodes HS256-signed tokens. The secret is fixed at
// construction; rotating it invalidates every outstanding token.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the given signing secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	return &Codec{secret: secret}, nil
}

// Encode serializes the claims into a compact signed string.
func (c *Codec) Encode(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("claims missing subject")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return "", fmt.Errorf("expiry %v is not after issued-at %v", claims.ExpiresAt, claims.IssuedAt)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	return tok.SignedString(c.secret)
}

// Decode verifies the signature and parses the claims. Expiry is NOT checked
// here: the caller owns the clock and decides whether the token is still live.
// Fails with ErrInvalidSignature if the signature does not verify and
// ErrMalformed if the string cannot be parsed or lacks required claims.
func (c *Codec) Decode(raw string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC to prevent alg-confusion attacks
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	reg, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return Claims{}, ErrMalformed
	}
	if reg.Subject == "" || reg.IssuedAt == nil || reg.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing required claim", ErrMalformed)
	}

	return Claims{
		Subject:   reg.Subject,
		IssuedAt:  reg.IssuedAt.Time,
		ExpiresAt: reg.ExpiresAt.Time,
	}, nil
}

// ExtractSubject decodes the token and returns its subject, or "" if the
// token cannot be decoded. Never fails: an unreadable token is treated the
// same as no token at all.
func (c *Codec) ExtractSubject(raw string) string {
	claims, err := c.Decode(raw)
	if err != nil {
		return ""
	}
	return claims.Subject
}
