package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/catalog"
	"github.com/smallbiznis/karat/internal/clock"
	"github.com/smallbiznis/karat/internal/config"
	"github.com/smallbiznis/karat/internal/goldrate"
	"github.com/smallbiznis/karat/internal/liveevents"
	"github.com/smallbiznis/karat/internal/livesync"
	"github.com/smallbiznis/karat/internal/makingcharge"
	"github.com/smallbiznis/karat/internal/migration"
	"github.com/smallbiznis/karat/internal/observability"
	"github.com/smallbiznis/karat/internal/order"
	"github.com/smallbiznis/karat/internal/pricing"
	"github.com/smallbiznis/karat/internal/providers"
	"github.com/smallbiznis/karat/internal/ratelimit"
	"github.com/smallbiznis/karat/internal/redisx"
	"github.com/smallbiznis/karat/internal/scheduler"
	"github.com/smallbiznis/karat/internal/server"
	"github.com/smallbiznis/karat/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		redisx.Module,
		liveevents.Module,
		providers.Module,
		ratelimit.Module,

		// Pricing domains
		goldrate.Module,
		catalog.Module,
		makingcharge.Module,
		pricing.Module,
		livesync.Module,
		order.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
