package refresher

import (
	"go.uber.org/fx"
)

const moduleName = "refresher"

var Module = fx.Module(moduleName,
	fx.Provide(NewService),
	fx.Invoke(func(lc fx.Lifecycle, service *Service) {
		lc.Append(fx.StartStopHook(service.Start, service.Stop))
	}),
)
