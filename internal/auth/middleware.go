// ABOUTME: HTTP middleware implementing the per-request authentication gate
// ABOUTME: Extracts bearer tokens, validates them, and attaches the principal to context

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/fold-auth/internal/store"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns "" when the header is absent, uses a different scheme, or carries
// an empty credential — all treated as "no token presented".
func extractBearerToken(authHeader string) string {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// Middleware returns the authentication gate. It runs exactly once per
// request, before business logic, and terminates in one of two states:
// authenticated (principal attached to the request context) or
// unauthenticated (request passes through untouched). The gate itself never
// writes an auth error — rejecting unauthenticated access to protected
// resources is the job of RequireAuth and friends downstream.
//
// Requests whose path starts with one of the bypass prefixes skip the gate
// entirely, so login and registration stay reachable without a prior token.
//
// The single exception to pass-through is a backing-store outage: that is an
// infrastructure failure, not an authentication decision, and it surfaces as
// 503 rather than silently downgrading the request to unauthenticated.
func Middleware(users store.UserStore, svc *Service, bypassPrefixes []string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range bypassPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			raw := extractBearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			subject := svc.ExtractSubject(raw)
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByEmail(r.Context(), subject)
			if err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					// Never reveal whether the subject exists
					logAuthFailure(logger, r, "principal not found")
					next.ServeHTTP(w, r)
					return
				}
				serveStoreFailure(w, logger, r, err)
				return
			}

			if err := svc.Validate(r.Context(), raw, user.Email); err != nil {
				if IsAuthFailure(err) {
					logAuthFailure(logger, r, err.Error())
					next.ServeHTTP(w, r)
					return
				}
				serveStoreFailure(w, logger, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), NewPrincipal(user))))
		})
	}
}

// RequireAuth returns a middleware that rejects requests without an
// authenticated principal. Must be used after Middleware.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromContext(r.Context()) == nil {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that requires an authenticated principal
// holding the given role. Must be used after Middleware.
func RequireRole(role store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p == nil {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			if !p.HasRole(role) {
				http.Error(w, `{"error":"insufficient role"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthority returns a middleware that requires a fine-grained
// permission. Must be used after Middleware.
func RequireAuthority(authority string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p == nil {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			if !p.HasAuthority(authority) {
				http.Error(w, `{"error":"insufficient authority"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// logAuthFailure logs an authentication failure with structured context.
// Failure reasons stay in the logs; the client only ever sees the request
// proceed unauthenticated.
func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("auth failure", "reason", reason, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
}

func serveStoreFailure(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	if logger != nil {
		logger.Error("auth store failure", "error", err, "path", r.URL.Path)
	}
	http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
}
