package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRulesHolder),
	fx.Provide(func(h *RulesHolder) RulesProvider { return h }),
)
