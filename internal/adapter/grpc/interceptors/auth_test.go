package interceptors

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kogoto-lab/kogoto/internal/service/auth"
)

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "learner-1"}}, nil
}

func TestUnaryAuthInterceptor(t *testing.T) {
	icpt := UnaryAuthInterceptor(fakeValidator{})
	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen, _ = LearnerID(ctx)
		return "ok", nil
	}

	tests := []struct {
		name    string
		method  string
		header  string
		code    codes.Code
		learner string
	}{
		{"health is public", "/grpc.health.v1.Health/Check", "", codes.OK, ""},
		{"missing header", "/kogoto.Quiz/Get", "", codes.Unauthenticated, ""},
		{"bad token", "/kogoto.Quiz/Get", "Bearer bad", codes.Unauthenticated, ""},
		{"good token", "/kogoto.Quiz/Get", "Bearer good", codes.OK, "learner-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", tt.header))
			}

			_, err := icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)

			if got := status.Code(err); got != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, got)
			}
			if seen != tt.learner {
				t.Errorf("expected learner %q, got %q", tt.learner, seen)
			}
		})
	}
}
