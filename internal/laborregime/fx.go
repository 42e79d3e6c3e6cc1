package laborregime

import (
	"github.com/smallbiznis/turnos/internal/laborregime/repository"
	"github.com/smallbiznis/turnos/internal/laborregime/service"
	"go.uber.org/fx"
)

var Module = fx.Module("laborregime.registry",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewRegistry),
)
