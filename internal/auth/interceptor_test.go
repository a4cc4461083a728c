// ABOUTME: Tests for the gRPC authentication interceptors
// ABOUTME: Covers metadata extraction, pass-through, guards, and outage handling

package auth

import (
	"context"
	"log/slog"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/2389/fold-auth/internal/store"
)

func unaryCtx(t *testing.T, f *gateFixture, users store.UserStore, md metadata.MD) (*Principal, error) {
	t.Helper()

	interceptor := UnaryInterceptor(users, f.svc, slog.Default())

	ctx := context.Background()
	if md != nil {
		ctx = metadata.NewIncomingContext(ctx, md)
	}

	var got *Principal
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/fold.Demo/Get"},
		func(ctx context.Context, req any) (any, error) {
			got = FromContext(ctx)
			return nil, nil
		})
	return got, err
}

func TestUnaryInterceptor_ValidToken(t *testing.T) {
	f := newGateFixture(t)

	p, err := unaryCtx(t, f, f.users, metadata.Pairs("authorization", "Bearer "+f.token))
	if err != nil {
		t.Fatalf("interceptor error = %v", err)
	}
	if p == nil {
		t.Fatal("expected principal in handler context")
	}
	if p.Subject != "a@x.com" {
		t.Errorf("Subject = %q, want %q", p.Subject, "a@x.com")
	}
}

func TestUnaryInterceptor_PassThrough(t *testing.T) {
	f := newGateFixture(t)

	tests := []struct {
		name string
		md   metadata.MD
	}{
		{"no metadata", nil},
		{"no authorization", metadata.Pairs("other", "value")},
		{"wrong scheme", metadata.Pairs("authorization", "Basic xyz")},
		{"malformed token", metadata.Pairs("authorization", "Bearer garbage")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := unaryCtx(t, f, f.users, tt.md)
			if err != nil {
				t.Fatalf("interceptor error = %v", err)
			}
			if p != nil {
				t.Error("expected no principal")
			}
		})
	}
}

func TestUnaryInterceptor_RevokedToken(t *testing.T) {
	f := newGateFixture(t)
	if err := f.svc.Revoke(context.Background(), f.token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	p, err := unaryCtx(t, f, f.users, metadata.Pairs("authorization", "Bearer "+f.token))
	if err != nil {
		t.Fatalf("interceptor error = %v", err)
	}
	if p != nil {
		t.Error("revoked token must not authenticate")
	}
}

func TestUnaryInterceptor_StoreUnavailable(t *testing.T) {
	f := newGateFixture(t)

	_, err := unaryCtx(t, f, unavailableUserStore{}, metadata.Pairs("authorization", "Bearer "+f.token))
	if status.Code(err) != codes.Unavailable {
		t.Errorf("code = %v, want Unavailable", status.Code(err))
	}
}

func TestRequireAuthUnary(t *testing.T) {
	guard := RequireAuthUnary()

	_, err := guard(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/fold.Demo/Get"},
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}

	ctx := WithPrincipal(context.Background(), testPrincipal("a@x.com"))
	resp, err := guard(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/fold.Demo/Get"},
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("guard error = %v", err)
	}
	if resp != "ok" {
		t.Errorf("resp = %v, want ok", resp)
	}
}

func TestStreamInterceptor_ValidToken(t *testing.T) {
	f := newGateFixture(t)

	interceptor := StreamInterceptor(f.users, f.svc, slog.Default())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+f.token))

	var got *Principal
	err := interceptor(nil, &fakeServerStream{ctx: ctx}, &grpc.StreamServerInfo{FullMethod: "/fold.Demo/Watch"},
		func(srv any, ss grpc.ServerStream) error {
			got = FromContext(ss.Context())
			return nil
		})
	if err != nil {
		t.Fatalf("interceptor error = %v", err)
	}
	if got == nil || got.Subject != "a@x.com" {
		t.Errorf("principal = %+v, want subject a@x.com", got)
	}
}

// fakeServerStream is a minimal grpc.ServerStream for interceptor tests.
type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }
