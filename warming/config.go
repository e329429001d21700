package warming

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config warming engine settings (warming.*)
type Config struct {
	// PoolSize goroutines executing warming tasks
	PoolSize int `mapstructure:"pool_size"`

	// TaskTimeout bounds a single task's compute and write
	TaskTimeout time.Duration `mapstructure:"task_timeout"`

	// DefaultInterval for tasks registered without one
	DefaultInterval time.Duration `mapstructure:"default_interval"`

	// MinInterval / MaxInterval clamp OptimizeSchedules
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`

	// TrackerWindow sliding window of the access pattern tracker
	TrackerWindow time.Duration `mapstructure:"tracker_window"`

	// TrackerHistory accesses kept per key
	TrackerHistory int `mapstructure:"tracker_history"`

	// UserCooldown skips re-warming the same user within this period
	UserCooldown time.Duration `mapstructure:"user_cooldown"`

	// WarmOnStart runs WarmCriticalData when the engine starts
	WarmOnStart *bool `mapstructure:"warm_on_start"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	on := true
	return Config{
		PoolSize:        8,
		TaskTimeout:     30 * time.Second,
		DefaultInterval: 30 * time.Minute,
		MinInterval:     15 * time.Minute,
		MaxInterval:     120 * time.Minute,
		TrackerWindow:   time.Hour,
		TrackerHistory:  100,
		UserCooldown:    5 * time.Minute,
		WarmOnStart:     &on,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.PoolSize == 0 {
		c.PoolSize = def.PoolSize
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = def.TaskTimeout
	}
	if c.DefaultInterval == 0 {
		c.DefaultInterval = def.DefaultInterval
	}
	if c.MinInterval == 0 {
		c.MinInterval = def.MinInterval
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.TrackerWindow == 0 {
		c.TrackerWindow = def.TrackerWindow
	}
	if c.TrackerHistory == 0 {
		c.TrackerHistory = def.TrackerHistory
	}
	if c.UserCooldown == 0 {
		c.UserCooldown = def.UserCooldown
	}
	if c.WarmOnStart == nil {
		c.WarmOnStart = def.WarmOnStart
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PoolSize, validation.Min(1), validation.Max(1024)),
		validation.Field(&c.TaskTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.DefaultInterval, validation.Min(time.Second)),
		validation.Field(&c.MinInterval, validation.Min(time.Second)),
		validation.Field(&c.MaxInterval, validation.By(func(interface{}) error {
			if c.MaxInterval < c.MinInterval {
				return validation.NewError("validation_max_interval", "max_interval 不能小于 min_interval")
			}
			return nil
		})),
		validation.Field(&c.TrackerWindow, validation.Min(time.Second)),
		validation.Field(&c.TrackerHistory, validation.Min(2)),
		validation.Field(&c.UserCooldown, validation.Min(time.Duration(0))),
	)
}
