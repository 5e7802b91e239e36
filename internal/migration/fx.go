package migration

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/config"
	"github.com/smallbiznis/karat/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			log.Warn("no SQL migrations for dialect, using model auto-migration",
				zap.String("db_type", cfg.DBType))
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.SeedSampleCatalog {
			return seed.EnsureSampleCatalog(conn, node)
		}
		return nil
	}),
)
