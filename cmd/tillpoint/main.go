package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/cache"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	"github.com/smallbiznis/tillpoint/internal/customer"
	"github.com/smallbiznis/tillpoint/internal/events"
	"github.com/smallbiznis/tillpoint/internal/idempotency"
	"github.com/smallbiznis/tillpoint/internal/inventory"
	"github.com/smallbiznis/tillpoint/internal/loyalty"
	"github.com/smallbiznis/tillpoint/internal/migration"
	"github.com/smallbiznis/tillpoint/internal/observability"
	"github.com/smallbiznis/tillpoint/internal/order"
	"github.com/smallbiznis/tillpoint/internal/payment"
	"github.com/smallbiznis/tillpoint/internal/product"
	"github.com/smallbiznis/tillpoint/internal/promotion"
	"github.com/smallbiznis/tillpoint/internal/scheduler"
	"github.com/smallbiznis/tillpoint/internal/server"
	"github.com/smallbiznis/tillpoint/internal/ticket"
	"github.com/smallbiznis/tillpoint/pkg/db"
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
		cache.Module,
		idempotency.Module,
		events.Module,

		// Functional Domains
		product.Module,
		promotion.Module,
		inventory.Module,
		customer.Module,
		loyalty.Module,
		order.Module,
		payment.Module,
		ticket.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
