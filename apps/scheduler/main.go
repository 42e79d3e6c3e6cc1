package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/audit"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/declaration"
	"github.com/smallbiznis/turnos/internal/laborregime"
	"github.com/smallbiznis/turnos/internal/notification"
	"github.com/smallbiznis/turnos/internal/observability"
	"github.com/smallbiznis/turnos/internal/period"
	"github.com/smallbiznis/turnos/internal/reconciliation"
	"github.com/smallbiznis/turnos/internal/scheduler"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"github.com/smallbiznis/turnos/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Reconciliation needs the declaration aggregate and its collaborators.
		audit.Module,
		laborregime.Module,
		shifthours.Module,
		period.Module,
		declaration.Module,
		reconciliation.Module,
		notification.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
