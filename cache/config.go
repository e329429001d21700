package cache

import (
	"time"

	"github.com/KOMKZ/go-yogan-cache/database"
	"github.com/KOMKZ/go-yogan-cache/redis"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Durable tier drivers
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverGorm   = "gorm"
)

// Config memory tier and coordinator settings (cache.*)
type Config struct {
	// MaxEntries memory tier capacity
	MaxEntries int `mapstructure:"max_entries"`

	// DefaultTTL used by GetOrCompute when WithTTL is not given
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// ComputeTimeout bounds a compute function when WithTimeout is not given
	ComputeTimeout time.Duration `mapstructure:"compute_timeout"`

	// FenceLogSize number of invalidations remembered for the write fence
	FenceLogSize int `mapstructure:"fence_log_size"`
}

// DefaultConfig returns the coordinator defaults
func DefaultConfig() Config {
	return Config{
		MaxEntries:     10000,
		DefaultTTL:     5 * time.Minute,
		ComputeTimeout: 30 * time.Second,
		FenceLogSize:   1024,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.MaxEntries == 0 {
		c.MaxEntries = def.MaxEntries
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = def.DefaultTTL
	}
	if c.ComputeTimeout == 0 {
		c.ComputeTimeout = def.ComputeTimeout
	}
	if c.FenceLogSize == 0 {
		c.FenceLogSize = def.FenceLogSize
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxEntries, validation.Min(1)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.ComputeTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.FenceLogSize, validation.Min(16)),
	)
}

// DurableConfig durable tier settings (durable.*)
type DurableConfig struct {
	// Driver none, memory, redis or gorm
	Driver string `mapstructure:"driver"`

	// KeyPrefix namespaces keys in redis
	KeyPrefix string `mapstructure:"key_prefix"`

	// OpTimeout bounds each durable call
	OpTimeout time.Duration `mapstructure:"op_timeout"`

	// CleanupInterval memory driver expiry sweep
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	Redis          redis.Config         `mapstructure:"redis"`
	Database       database.Config      `mapstructure:"database"`
	Breaker        BreakerConfig        `mapstructure:"breaker"`
	NegativeFilter NegativeFilterConfig `mapstructure:"negative_filter"`
}

// BreakerConfig circuit breaker around the durable tier
type BreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// ConsecutiveFailures opens the breaker
	ConsecutiveFailures uint32 `mapstructure:"consecutive_failures"`

	// OpenTimeout time spent open before a half-open trial
	OpenTimeout time.Duration `mapstructure:"open_timeout"`

	// HalfOpenRequests trial requests allowed while half-open
	HalfOpenRequests uint32 `mapstructure:"half_open_requests"`
}

// NegativeFilterConfig bloom filter of keys written during this process's life
type NegativeFilterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ExpectedItems     uint    `mapstructure:"expected_items"`
	FalsePositiveRate float64 `mapstructure:"false_positive_rate"`
}

// ApplyDefaults fills zero values
func (c *DurableConfig) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverNone
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "cachengine:"
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = 2 * time.Second
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Minute
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Breaker.HalfOpenRequests == 0 {
		c.Breaker.HalfOpenRequests = 1
	}
	if c.NegativeFilter.ExpectedItems == 0 {
		c.NegativeFilter.ExpectedItems = 100000
	}
	if c.NegativeFilter.FalsePositiveRate == 0 {
		c.NegativeFilter.FalsePositiveRate = 0.01
	}
	switch c.Driver {
	case DriverRedis:
		c.Redis.ApplyDefaults()
	case DriverGorm:
		c.Database.ApplyDefaults()
	}
}

// Validate checks the configuration
func (c DurableConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverNone, DriverMemory, DriverRedis, DriverGorm)),
		validation.Field(&c.OpTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.Redis, validation.Skip.When(c.Driver != DriverRedis)),
		validation.Field(&c.Database, validation.Skip.When(c.Driver != DriverGorm)),
		validation.Field(&c.NegativeFilter, validation.Skip.When(!c.NegativeFilter.Enabled)),
	)
}

// Validate checks the filter sizing
func (c NegativeFilterConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ExpectedItems, validation.Min(uint(1))),
		validation.Field(&c.FalsePositiveRate, validation.Min(0.000001), validation.Max(0.5)),
	)
}
