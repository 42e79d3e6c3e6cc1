package main

import (
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/notification"
	"github.com/smallbiznis/turnos/internal/observability"
	"go.uber.org/fx"
)

// Drains the notification queue filled by the api and scheduler processes.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,

		notification.WorkerModule,
	)
	app.Run()
}
