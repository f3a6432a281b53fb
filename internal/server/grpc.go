package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/studysift/internal/common"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker func(ctx context.Context) error

// NewGRPCServer returns a gRPC server exposing the standard health service and reflection.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(errorInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return gs, hs
}

// errorInterceptor logs failed calls and maps application errors onto gRPC codes.
func errorInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		logger.Warn("grpc.call.failed", "method", info.FullMethod, "kind", common.KindOf(err), "error", err)
		return resp, common.ToStatus(err)
	}
}

// ServeGRPC serves health on addr until ctx is done. check decides the serving status
// reported at startup.
func ServeGRPC(ctx context.Context, addr string, check HealthChecker, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	gs, hs := NewGRPCServer(logger)
	serving := healthpb.HealthCheckResponse_SERVING
	if check != nil {
		if err := check(ctx); err != nil {
			logger.Error("grpc.health.not_serving", "error", err)
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	hs.SetServingStatus("", serving)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("grpc.serving", "addr", lis.Addr().String())
		errCh <- gs.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		hs.Shutdown()
		gs.GracefulStop()
		return nil
	}
}
