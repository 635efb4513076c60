package grpchealth

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/snapshot"
)

// ServiceName is reported alongside the overall "" service.
const ServiceName = "b3pulse.MarketData"

var Module = fx.Module("grpchealth",
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, store *snapshot.Store, logger *zap.Logger) {
		if cfg.GRPC.Addr == "" {
			logger.Info("gRPC health server disabled")
			return
		}

		srv := New(cfg.GRPC.Addr, store, logger)
		lc.Append(fx.StartStopHook(srv.Start, srv.Stop))
	}),
)

// Server answers grpc.health.v1 checks: SERVING while the provider is connected.
type Server struct {
	addr   string
	store  *snapshot.Store
	logger *zap.Logger

	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

func New(addr string, store *snapshot.Store, logger *zap.Logger) *Server {
	s := &Server{
		addr:   addr,
		store:  store,
		logger: logger.Named("grpchealth"),
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.apply(store.Connection())
	store.OnConnectionChange(s.apply)

	return s
}

func (s *Server) apply(state snapshot.ConnectionState) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state.Connected {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc health listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))

	go func() {
		if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info("gRPC health server stopped")
}
