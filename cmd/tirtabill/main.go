package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/tirtabill/tirtabill/internal/clock"
	"github.com/tirtabill/tirtabill/internal/config"
	"github.com/tirtabill/tirtabill/internal/migration"
	"github.com/tirtabill/tirtabill/internal/observability"
	"github.com/tirtabill/tirtabill/internal/scheduler"
	"github.com/tirtabill/tirtabill/internal/server"
	"github.com/tirtabill/tirtabill/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		log.Fatalf("snowflake node %d: %v", cfg.SnowflakeNode, err)
	}
	return node
}
