// Package database opens the gorm connection backing the SQL durable tier
package database

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config database configuration (durable.database.*)
type Config struct {
	Driver          string        `mapstructure:"driver"`            // sqlite, mysql, postgres
	DSN             string        `mapstructure:"dsn"`               // data source name
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // maximum open connections
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // maximum idle connections
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // connection lifetime
	EnableLog       bool          `mapstructure:"enable_log"`        // route SQL logs to zap
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`    // slow query threshold

	// OpenTelemetry tracing
	TraceSQL       bool `mapstructure:"trace_sql"`         // record SQL text on spans (default false)
	TraceSQLMaxLen int  `mapstructure:"trace_sql_max_len"` // SQL text max length (default 1000)
}

// DefaultConfig returns an in-memory sqlite configuration
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "file::memory:?cache=shared",
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		EnableLog:       true,
		SlowThreshold:   200 * time.Millisecond,
		TraceSQLMaxLen:  1000,
	}
}

// ApplyDefaults fills zero values from DefaultConfig
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Driver == "" {
		c.Driver = def.Driver
	}
	if c.DSN == "" && c.Driver == DriverSQLite {
		c.DSN = def.DSN
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = def.SlowThreshold
	}
	if c.TraceSQLMaxLen <= 0 {
		c.TraceSQLMaxLen = def.TraceSQLMaxLen
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverMySQL, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(1)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}
