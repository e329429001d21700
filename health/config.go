package health

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 健康检查配置 (health.*)
type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`

	// MemoryDegradedAt memory tier utilization reported as degraded
	MemoryDegradedAt float64 `mapstructure:"memory_degraded_at"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MemoryDegradedAt: 0.98,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.MemoryDegradedAt == 0 {
		c.MemoryDegradedAt = def.MemoryDegradedAt
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(time.Millisecond)),
		validation.Field(&c.MemoryDegradedAt, validation.Min(0.0), validation.Max(1.0)),
	)
}
