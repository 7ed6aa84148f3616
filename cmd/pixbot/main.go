package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pixbot/internal/access"
	"github.com/smallbiznis/pixbot/internal/bot"
	"github.com/smallbiznis/pixbot/internal/clock"
	"github.com/smallbiznis/pixbot/internal/config"
	"github.com/smallbiznis/pixbot/internal/delivery"
	"github.com/smallbiznis/pixbot/internal/migration"
	"github.com/smallbiznis/pixbot/internal/observability"
	"github.com/smallbiznis/pixbot/internal/payment"
	"github.com/smallbiznis/pixbot/internal/product"
	"github.com/smallbiznis/pixbot/internal/providers/pdf"
	"github.com/smallbiznis/pixbot/internal/providers/telegram"
	"github.com/smallbiznis/pixbot/internal/purchase"
	"github.com/smallbiznis/pixbot/internal/ratelimit"
	"github.com/smallbiznis/pixbot/internal/sale"
	"github.com/smallbiznis/pixbot/internal/server"
	"github.com/smallbiznis/pixbot/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Providers
		telegram.Module,
		pdf.Module,
		ratelimit.Module,

		// Functional Domains
		product.Module,
		sale.Module,
		access.Module,
		delivery.Module,
		payment.Module,
		purchase.Module,

		// Surfaces
		server.Module,
		bot.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
