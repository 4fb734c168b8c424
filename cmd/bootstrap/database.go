package bootstrap

import (
	"fmt"

	"github.com/NovaByte/NovaVoice/internal/models"
	"github.com/NovaByte/NovaVoice/pkg/config"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options database setup options
type Options struct {
	AutoMigrate bool // migrate entities
	Seed        bool // insert demo data
}

// SetupDatabase opens the configured database, runs migrations and
// seeds when requested. An unconfigured database is not an error: it
// returns a nil handle and the stores run in mock mode.
func SetupDatabase(opts *Options) (*gorm.DB, error) {
	driver := config.GlobalConfig.Database.Driver
	dsn := config.GlobalConfig.Database.DSN

	if driver == "" || driver == "none" || dsn == "" {
		logger.Warn("Database not configured, call persistence runs in mock mode")
		return nil, nil
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts != nil && opts.AutoMigrate {
		if err := db.AutoMigrate(&models.Order{}, &models.CallRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("Database migrated", zap.String("driver", driver))
	}

	if opts != nil && opts.Seed {
		seeder := &SeedService{db: db}
		if err := seeder.SeedAll(); err != nil {
			return nil, fmt.Errorf("failed to seed: %w", err)
		}
	}

	logger.Info("Database ready", zap.String("driver", driver))
	return db, nil
}
