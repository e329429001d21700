package scheduler

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config background job intervals (scheduler.*). The metrics poll interval
// lives in metrics.poll_interval.
type Config struct {
	// WarmingInterval how often due warming tasks are checked
	WarmingInterval time.Duration `mapstructure:"warming_interval"`

	// OptimizeInterval how often warming schedules are re-derived from access patterns
	OptimizeInterval time.Duration `mapstructure:"optimize_interval"`

	// SweepInterval expired entries and pending stale marks
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// StopTimeout waits for running jobs on shutdown
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		WarmingInterval:  time.Minute,
		OptimizeInterval: 10 * time.Minute,
		SweepInterval:    time.Minute,
		StopTimeout:      30 * time.Second,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.WarmingInterval == 0 {
		c.WarmingInterval = def.WarmingInterval
	}
	if c.OptimizeInterval == 0 {
		c.OptimizeInterval = def.OptimizeInterval
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = def.StopTimeout
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.WarmingInterval, validation.Min(time.Second)),
		validation.Field(&c.OptimizeInterval, validation.Min(time.Second)),
		validation.Field(&c.SweepInterval, validation.Min(time.Second)),
		validation.Field(&c.StopTimeout, validation.Min(time.Millisecond)),
	)
}
