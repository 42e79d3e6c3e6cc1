package declaration

import (
	"github.com/smallbiznis/turnos/internal/declaration/repository"
	"github.com/smallbiznis/turnos/internal/declaration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("declaration.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideCounter),
	fx.Provide(service.NewAccessor),
	fx.Provide(service.NewService),
)
