package deppkg

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// OpenDB opens the configured datastore. sqlite is meant for development and
// tests, postgres for deployments.
func OpenDB(config DBConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(config.Path)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	logMode := gormLogger.Silent
	if debug {
		logMode = gormLogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open %s database: %w", config.Driver, err)
	}

	if config.AutoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			return nil, fmt.Errorf("could not create tables: %w", err)
		}
	}

	return db, nil
}

// Ping runs a trivial query against the datastore.
func Ping(ctx context.Context, db *gorm.DB) error {
	var one int
	return db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}
