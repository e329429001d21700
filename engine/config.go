package engine

import (
	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/health"
	"github.com/KOMKZ/go-yogan-cache/invalidation"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	"github.com/KOMKZ/go-yogan-cache/scheduler"
	"github.com/KOMKZ/go-yogan-cache/telemetry"
	"github.com/KOMKZ/go-yogan-cache/validator"
	"github.com/KOMKZ/go-yogan-cache/warming"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config every section the engine is assembled from
type Config struct {
	Cache        cache.Config         `mapstructure:"cache"`
	Durable      cache.DurableConfig  `mapstructure:"durable"`
	Invalidation invalidation.Config  `mapstructure:"invalidation"`
	Metrics      metrics.Config       `mapstructure:"metrics"`
	Warming      warming.Config       `mapstructure:"warming"`
	Scheduler    scheduler.Config     `mapstructure:"scheduler"`
	Telemetry    telemetry.Config     `mapstructure:"telemetry"`
	Health       health.Config        `mapstructure:"health"`
	Logger       logger.ManagerConfig `mapstructure:"logger"`
}

// DefaultConfig memory-only engine with telemetry off
func DefaultConfig() Config {
	cfg := Config{
		Cache:        cache.DefaultConfig(),
		Durable:      cache.DurableConfig{Driver: cache.DriverNone},
		Invalidation: invalidation.DefaultConfig(),
		Metrics:      metrics.DefaultConfig(),
		Warming:      warming.DefaultConfig(),
		Scheduler:    scheduler.DefaultConfig(),
		Telemetry:    telemetry.DefaultConfig(),
		Health:       health.DefaultConfig(),
		Logger:       logger.DefaultManagerConfig(),
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values in every section
func (c *Config) ApplyDefaults() {
	c.Cache.ApplyDefaults()
	c.Durable.ApplyDefaults()
	c.Invalidation.ApplyDefaults()
	c.Metrics.ApplyDefaults()
	c.Warming.ApplyDefaults()
	c.Scheduler.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Health.ApplyDefaults()
	c.Logger.ApplyDefaults()
}

// Validate checks every section
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Cache),
		validation.Field(&c.Durable),
		validation.Field(&c.Invalidation),
		validation.Field(&c.Metrics),
		validation.Field(&c.Warming),
		validation.Field(&c.Scheduler),
		validation.Field(&c.Telemetry),
		validation.Field(&c.Health),
		validation.Field(&c.Logger),
	)
}

// sections maps config keys to their targets
func (c *Config) sections() map[string]interface{} {
	return map[string]interface{}{
		"cache":        &c.Cache,
		"durable":      &c.Durable,
		"invalidation": &c.Invalidation,
		"metrics":      &c.Metrics,
		"warming":      &c.Warming,
		"scheduler":    &c.Scheduler,
		"telemetry":    &c.Telemetry,
		"health":       &c.Health,
		"logger":       &c.Logger,
	}
}

// LoadConfig reads every section present in loader over the defaults,
// applies defaults again and validates the result
func LoadConfig(loader component.ConfigLoader) (Config, error) {
	cfg := DefaultConfig()
	for key, target := range cfg.sections() {
		if !loader.IsSet(key) {
			continue
		}
		if err := loader.Unmarshal(key, target); err != nil {
			return Config{}, ErrConfigInvalid.WithMsgf("读取配置 %s 失败", key).Wrap(err)
		}
	}
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
