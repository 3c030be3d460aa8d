package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/observability"
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

		// Invoices, clients and audit over HTTP; overdue sweeps run in apps/scheduler.
		server.Domains,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
