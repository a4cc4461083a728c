// ABOUTME: gRPC interceptors applying the authentication gate to unary and stream RPCs
// ABOUTME: Extracts bearer tokens from metadata and populates context for handlers

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/2389/fold-auth/internal/store"
)

// UnaryInterceptor returns a gRPC unary interceptor running the same gate as
// the HTTP middleware: on success the principal is attached to the handler
// context, on any credential failure the request proceeds unauthenticated,
// and a backing-store outage fails the RPC with Unavailable.
func UnaryInterceptor(users store.UserStore, svc *Service, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := gateContext(ctx, users, svc, logger)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor returns the stream-RPC counterpart of UnaryInterceptor.
func StreamInterceptor(users store.UserStore, svc *Service, logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := gateContext(ss.Context(), users, svc, logger)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// gateContext evaluates the gate once for the RPC and returns the context the
// handler should run under.
func gateContext(ctx context.Context, users store.UserStore, svc *Service, logger *slog.Logger) (context.Context, error) {
	raw := bearerFromMetadata(ctx)
	if raw == "" {
		return ctx, nil
	}

	subject := svc.ExtractSubject(raw)
	if subject == "" {
		return ctx, nil
	}

	user, err := users.GetUserByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			logRPCAuthFailure(logger, ctx, "principal not found")
			return ctx, nil
		}
		return nil, status.Error(codes.Unavailable, "auth store unavailable")
	}

	if err := svc.Validate(ctx, raw, user.Email); err != nil {
		if IsAuthFailure(err) {
			logRPCAuthFailure(logger, ctx, err.Error())
			return ctx, nil
		}
		return nil, status.Error(codes.Unavailable, "auth store unavailable")
	}

	return WithPrincipal(ctx, NewPrincipal(user)), nil
}

// bearerFromMetadata extracts a bearer token from the authorization metadata
// key, returning "" when absent or not a bearer credential.
func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return extractBearerToken(strings.TrimSpace(values[0]))
}

// logRPCAuthFailure logs an authentication failure with structured context.
func logRPCAuthFailure(logger *slog.Logger, ctx context.Context, reason string) {
	if logger == nil {
		return
	}
	attrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, "peer_addr", p.Addr.String())
	}
	logger.Warn("auth failure", attrs...)
}

// RequireAuthUnary returns an interceptor that rejects RPCs without an
// authenticated principal. Must be installed after UnaryInterceptor.
func RequireAuthUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if FromContext(ctx) == nil {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(ctx, req)
	}
}

// wrappedStream overrides the stream context with the gate's result.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
