package reconciliation

import (
	"github.com/smallbiznis/turnos/internal/reconciliation/repository"
	"github.com/smallbiznis/turnos/internal/reconciliation/schedule"
	"github.com/smallbiznis/turnos/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(schedule.NewGormSchedule),
	fx.Provide(service.NewService),
)
