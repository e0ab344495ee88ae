package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-investigator/internal/config"
)

// Server owns the gRPC listener, the investigator service and its health endpoint.
type Server struct {
	cfg      config.ServerConfig
	grpc     *grpc.Server
	listener net.Listener
	health   *health.Server
	logger   *slog.Logger
}

// NewServer listens on cfg.Address and registers the investigator, health
// and reflection services. Extra options are appended after the defaults.
func NewServer(cfg config.ServerConfig, service InvestigatorServer, logger *slog.Logger, opts ...grpc.ServerOption) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	gs := grpc.NewServer(append(defaultOptions(logger), opts...)...)
	RegisterInvestigatorServer(gs, service)
	grpc_prometheus.Register(gs)

	hs := health.NewServer()
	for _, name := range []string{"", ServiceName} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{cfg: cfg, grpc: gs, listener: lis, health: hs, logger: logger}, nil
}

func defaultOptions(logger *slog.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpc_prometheus.UnaryServerInterceptor,
			loggingInterceptor(logger),
			recoveryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		// Investigations can hold a call open for minutes.
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: 2 * time.Minute, Timeout: 20 * time.Second}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 30 * time.Second, PermitWithoutStream: true}),
	}
}

// loggingInterceptor logs every unary call at debug and failures at warn.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(attrs, slog.Any("error", err))...)
		} else {
			logger.Debug("rpc handled", attrs...)
		}
		return resp, err
	}
}

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("rpc panicked",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	if s.grpc == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	return s.grpc.Serve(s.listener)
}

// Shutdown marks the server NOT_SERVING and drains in-flight calls. When ctx
// ends first, remaining calls are cut off.
func (s *Server) Shutdown(ctx context.Context) {
	if s.grpc == nil {
		return
	}
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.grpc.GracefulStop()
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out; closing remaining calls")
		s.grpc.Stop()
	}
}

// Address returns the bound address, which differs from the configured one for ":0".
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout is how long Shutdown callers should wait for drains.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
