package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/refresher"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		func(s *refresher.Service) RefreshReporter { return s },
		NewHandlers,
		NewRouter,
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.StartStopHook(s.Start, s.Stop))
	}),
)

type Server struct {
	addr    string
	handler http.Handler
	logger  *zap.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(cfg *config.Config, router *gin.Engine, logger *zap.Logger) *Server {
	return &Server{
		addr:    cfg.HTTP.Addr,
		handler: router,
		logger:  logger.Named("http"),
	}
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
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

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}
