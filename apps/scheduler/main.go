package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/observability"
	"github.com/smallbiznis/invoicer/internal/scheduler"
	"github.com/smallbiznis/invoicer/internal/server"
	"github.com/smallbiznis/invoicer/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// No server module!
		server.Domains,
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.SchedulerEnabled = true
			return cfg
		}),
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
