package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tirtabill/tirtabill/internal/config"
	"github.com/tirtabill/tirtabill/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.SeedDefaultTariff {
			return seed.EnsureDefaultTariffs(conn)
		}
		return nil
	}),
)
