package database

import (
	"fmt"
	"strings"

	"socialflow/internal/config"
	"socialflow/internal/logging"
	"socialflow/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by cfg.DBDriver and runs migrations.
func Open(cfg *config.Config) (*gorm.DB, error) {
	log := logging.Component("database")

	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(cfg.DBDriver) {
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(PostgresDSN(cfg)), gormCfg)
	case "sqlite", "":
		db, err = OpenSQLite(cfg.DBPath, gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("database migration completed")

	return db, nil
}

// PostgresDSN builds a libpq keyword/value connection string.
func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// OpenSQLite opens a SQLite file with a busy timeout and foreign keys on.
// SQLite allows a single writer, so the pool is capped at one connection.
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Tables lists every model in dependency order.
func Tables() []interface{} {
	return []interface{}{
		&models.Flow{},
		&models.Integration{},
		&models.Contact{},
		&models.ContactTag{},
		&models.Sequence{},
		&models.SequenceSubscription{},
		&models.Message{},
		&models.Product{},
		&models.FlowRun{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Tables()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}
