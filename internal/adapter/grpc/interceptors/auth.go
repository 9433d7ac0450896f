package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kogoto-lab/kogoto/internal/service/auth"
)

type contextKey string

const LearnerIDKey contextKey = "learner_id"

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// LearnerID returns the authenticated learner stored by UnaryAuthInterceptor.
func LearnerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(LearnerIDKey).(string)
	return id, ok
}

// UnaryAuthInterceptor creates a gRPC unary interceptor for learner tokens.
// Health and reflection methods are public.
func UnaryAuthInterceptor(validator TokenValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(authHeader[0], "Bearer "))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(context.WithValue(ctx, LearnerIDKey, claims.Subject), req)
	}
}

func isPublic(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/") ||
		strings.HasPrefix(method, "/grpc.reflection.")
}
