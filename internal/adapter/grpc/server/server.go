// Package server exposes the gRPC health protocol for orchestrators that
// probe over gRPC instead of HTTP.
package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kogoto-lab/kogoto/internal/adapter/grpc/interceptors"
)

// ServiceName is the health service name reported next to the overall "".
const ServiceName = "kogoto.Quiz"

// ReadinessFunc reports whether the backend can serve quiz traffic.
type ReadinessFunc func(ctx context.Context) bool

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	ready  ReadinessFunc
	log    *zap.Logger
}

func NewGRPCServer(ready ReadinessFunc, validator interceptors.TokenValidator, log *zap.Logger) *GRPCServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.UnaryMetricsInterceptor(),
		interceptors.UnaryLoggingInterceptor(log),
		interceptors.UnaryAuthInterceptor(validator),
	))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Enable reflection for debugging (e.g. grpcurl)
	reflection.Register(s)

	return &GRPCServer{
		server: s,
		health: hs,
		ready:  ready,
		log:    log,
	}
}

// Refresh updates the serving status from the readiness function.
func (s *GRPCServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.ready == nil || s.ready(ctx) {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Watch refreshes the serving status every interval until ctx is done.
func (s *GRPCServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
