package migration

import (
	"strings"

	accessdomain "github.com/smallbiznis/pixbot/internal/access/domain"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
	"github.com/smallbiznis/pixbot/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		if strings.EqualFold(cfg.Type, db.TypePostgres) {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		log.Info("running gorm auto migration", zap.String("db_type", cfg.Type))
		return AutoMigrate(conn)
	}),
)

// AutoMigrate creates the schema from the gorm models for dialects without
// embedded SQL migrations.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&productdomain.Product{},
		&saledomain.Sale{},
		&accessdomain.Grant{},
		&paymentdomain.EventRecord{},
	)
}
