// Package db opens the gorm connection and brings the schema up to date.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnsupportedType is returned for an unknown DB_TYPE.
var ErrUnsupportedType = errors.New("unsupported database type")

const (
	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// Dialector picks the gorm driver for cfg.Type.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.Path), nil
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		return mysql.Open(dsn), nil
	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		return sqlserver.Open(dsn), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
}

// Open connects with a few retries so the server survives a database that
// is still starting.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	level := logger.Silent
	if cfg.LogQueries {
		level = logger.Info
	}
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}

	var db *gorm.DB
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed", "attempt", attempt, "type", cfg.Type, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s after %d attempts: %w", cfg.Type, connectAttempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql db: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(max(cfg.MaxConns/2, 1))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Info("database connected", "type", cfg.Type)
	return db, nil
}

// requiredTables must exist once the schema is in place.
var requiredTables = []string{"entreprises", "profiles", "quotes", "invoices"}

// AutoMigrate creates or alters every table from the models.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return checkTables(db)
}

func checkTables(db *gorm.DB) error {
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return fmt.Errorf("missing table after migration: %s", table)
		}
	}
	return nil
}

// Prepare brings the schema up to date: versioned SQL migrations when
// enabled and the database is postgres, AutoMigrate otherwise.
func Prepare(db *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool, log *slog.Logger) error {
	if sqlMigrations && (cfg.Type == "postgres" || cfg.Type == "postgresql") {
		log.Info("running sql migrations")
		if err := RunSQLMigrations(cfg.URL()); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		return checkTables(db)
	}
	if sqlMigrations {
		log.Warn("sql migrations only ship for postgres, using automigrate", "type", cfg.Type)
	}
	return AutoMigrate(db)
}
