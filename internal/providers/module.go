package providers

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/domain"
	"github.com/igefined/b3-pulse/internal/providers/bridge"
	"github.com/igefined/b3-pulse/internal/providers/simulated"
)

const moduleName = "providers"

var Module = fx.Module(moduleName,
	fx.Provide(NewProvider),
)

func NewProvider(cfg *config.Config, logger *zap.Logger) domain.Provider {
	if cfg.Provider.Kind == config.ProviderSimulated {
		return simulated.NewProvider(logger, time.Now().UnixNano())
	}
	return bridge.NewProvider(cfg.Provider, logger)
}
