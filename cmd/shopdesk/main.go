package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/internal/cache"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/smallbiznis/shopdesk/internal/migration"
	"github.com/smallbiznis/shopdesk/internal/observability"
	"github.com/smallbiznis/shopdesk/internal/server"
	"github.com/smallbiznis/shopdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		migration.Module,

		// HTTP API and the domains behind it
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
