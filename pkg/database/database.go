package database

import (
	"fmt"
	"log"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/pkg/config"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the SQL database selected by cfg.Database.Driver.
// Errors are translated so duplicate keys surface as gorm.ErrDuplicatedKey on every dialect.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.Database.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("driver %q is not a SQL database", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database.Driver, err)
	}
	log.Printf("[DB] Connected (%s)", cfg.Database.Driver)
	return db, nil
}

// AutoMigrate creates or updates the push tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.DeviceToken{}, &domain.Notification{})
}
