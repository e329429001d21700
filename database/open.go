package database

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens a gorm connection for cfg, wires the zap gorm logger and the
// tracing plugin, and applies the pool settings.
func Open(cfg Config, log *logger.CtxZapLogger) (*gorm.DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	var gl gormlogger.Interface = gormlogger.Default.LogMode(gormlogger.Silent)
	if cfg.EnableLog {
		gl = logger.NewGormLogger(log, logger.GormLoggerConfig{
			SlowThreshold: cfg.SlowThreshold,
			LogLevel:      gormlogger.Warn,
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	plugin := NewOtelPlugin(nil).WithTraceSQL(cfg.TraceSQL).WithSQLMaxLen(cfg.TraceSQLMaxLen)
	if err := db.Use(plugin); err != nil {
		return nil, fmt.Errorf("use otel plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info("database opened", zap.String("driver", cfg.Driver))
	return db, nil
}

// Close closes the pool behind db
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
