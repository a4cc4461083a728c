// ABOUTME: HTTP server wiring the authentication gate in front of the API
// ABOUTME: Owns the listener lifecycle, route registration, and token cleanup loop

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/fold-auth/internal/auth"
	"github.com/2389/fold-auth/internal/config"
	"github.com/2389/fold-auth/internal/store"
)

// cleanupInterval is how often expired tokens are pruned from the store.
// Validation never depends on this loop; it only keeps the store small.
const cleanupInterval = time.Hour

// Server is the fold-auth HTTP server.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	users      store.UserStore
	tokens     store.TokenStore
	svc        *auth.Service
	authn      *auth.CredentialAuthenticator
	httpServer *http.Server
}

// New creates a server from its collaborators. The caller owns the stores'
// lifetimes.
func New(cfg *config.Config, logger *slog.Logger, users store.UserStore, tokens store.TokenStore, svc *auth.Service) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		users:  users,
		tokens: tokens,
		svc:    svc,
		authn:  auth.NewCredentialAuthenticator(users),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// routes builds the handler tree. The authentication gate wraps everything;
// per-route guards decide what anonymous requests may reach.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/authenticate", s.handleAuthenticate)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)

	mux.Handle("POST /api/v1/auth/logout-all", s.requireAuthOutsideBypass(http.HandlerFunc(s.handleLogoutAll)))

	mux.Handle("GET /api/v1/demo", auth.RequireAuth()(http.HandlerFunc(s.handleDemo)))
	mux.Handle("GET /api/v1/admin", auth.RequireRole(store.RoleAdmin)(http.HandlerFunc(s.handleAdmin)))
	mux.Handle("GET /api/v1/management", auth.RequireAuthority("management:read")(http.HandlerFunc(s.handleManagement)))

	gate := auth.Middleware(s.users, s.svc, s.cfg.Auth.BypassPrefixes, s.logger)
	return gate(mux)
}

// requireAuthOutsideBypass authenticates a request that lives under the
// bypass prefix. logout-all needs a verified caller, but it must stay under
// /api/v1/auth, so it runs the gate's validation itself.
func (s *Server) requireAuthOutsideBypass(next http.Handler) http.Handler {
	gate := auth.Middleware(s.users, s.svc, nil, s.logger)
	return gate(auth.RequireAuth()(next))
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.cleanupLoop(ctx)

	var serverErr error
	select {
	case <-ctx.Done():
	case serverErr = <-errCh:
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// cleanupLoop periodically prunes expired tokens until the context ends.
func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.tokens.DeleteExpiredTokens(ctx, time.Now())
			if err != nil {
				s.logger.Warn("token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("pruned expired tokens", "count", n)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
