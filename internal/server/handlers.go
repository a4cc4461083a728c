// ABOUTME: HTTP handlers for registration, login, logout, and guarded sample endpoints
// ABOUTME: JSON request/response types and the error-to-status mapping live here

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-auth/internal/auth"
	"github.com/2389/fold-auth/internal/store"
)

// RegisterRequest is the JSON request body for POST /api/v1/auth/register.
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
}

// AuthenticateRequest is the JSON request body for POST /api/v1/auth/authenticate.
type AuthenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the JSON response for endpoints that issue a token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		s.sendJSONError(w, http.StatusNotAcceptable, "email is required")
		return
	}

	role := store.Role(req.Role)
	if req.Role == "" {
		role = store.RoleUser
	}
	if !role.Valid() {
		s.sendJSONError(w, http.StatusNotAcceptable, "unknown role")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, store.ErrEmailExists):
			s.sendJSONError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, store.ErrUnavailable):
			s.sendJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		default:
			s.logger.Error("creating user", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	s.issueAndRespond(w, r, auth.NewPrincipal(user))
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal, err := s.authn.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// One opaque message for every credential failure
			s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		s.sendJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	s.issueAndRespond(w, r, principal)
}

// issueAndRespond issues a fresh token for the principal and writes it back.
func (s *Server) issueAndRespond(w http.ResponseWriter, r *http.Request, principal *auth.Principal) {
	tok, err := s.svc.Issue(r.Context(), principal)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			s.sendJSONError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		s.logger.Error("issuing token", "error", err, "subject", principal.Subject)
		s.sendJSONError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	s.sendJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tok.Value,
		ExpiresAt:   tok.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleLogout revokes the presented bearer token. Deliberately quiet: an
// unknown or already-revoked token gets the same 200 as a live one, so the
// endpoint cannot confirm whether a token was ever issued.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := s.svc.Revoke(r.Context(), raw); err != nil {
		s.logger.Error("revoking token", "error", err)
		s.sendJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogoutAll revokes every live token of the authenticated caller.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	if err := s.svc.RevokeAll(r.Context(), principal.Subject); err != nil {
		s.logger.Error("revoking subject tokens", "error", err, "subject", principal.Subject)
		s.sendJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	s.sendJSON(w, http.StatusOK, map[string]any{
		"message":     "hello from a protected endpoint",
		"subject":     principal.Subject,
		"role":        principal.Role,
		"authorities": principal.Authorities,
	})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "admin access granted",
		"subject": principal.Subject,
	})
}

func (s *Server) handleManagement(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "management access granted",
		"subject": principal.Subject,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
