package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/pkg/logger"

	"github.com/igefined/b3-pulse/internal/analytics"
	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/grpchealth"
	"github.com/igefined/b3-pulse/internal/httpapi"
	"github.com/igefined/b3-pulse/internal/metrics"
	"github.com/igefined/b3-pulse/internal/providers"
	"github.com/igefined/b3-pulse/internal/publisher"
	"github.com/igefined/b3-pulse/internal/refresher"
	"github.com/igefined/b3-pulse/internal/snapshot"
	"github.com/igefined/b3-pulse/internal/universe"
)

func main() {
	fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		config.Module,
		logger.Module,
		universe.Module,
		metrics.Module,
		// Data source
		providers.Module,
		snapshot.Module,
		// Business logic modules
		refresher.Module,
		analytics.Module,
		publisher.Module,
		// Read side
		httpapi.Module,
		grpchealth.Module,
	).Run()
}
