package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/observability"
	"github.com/smallbiznis/turnos/internal/server"
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

		// Domain modules come with server.Module.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
