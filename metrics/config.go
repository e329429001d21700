package metrics

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config metrics collector and analyzer settings (metrics.*)
type Config struct {
	// RingCapacity samples kept per (layer, metric)
	RingCapacity int `mapstructure:"ring_capacity"`

	// PollInterval how often layer stats are sampled and alerts checked
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// TrendSensitivity relative change needed to leave Stable (0.05 = 5%)
	TrendSensitivity float64 `mapstructure:"trend_sensitivity"`

	// DegradationThreshold hit rate drop that counts as degradation (0.15 = 15 points)
	DegradationThreshold float64 `mapstructure:"degradation_threshold"`

	// RecentWindow current value window for degradation and alerts
	RecentWindow time.Duration `mapstructure:"recent_window"`

	// BaselineWindow historical window for degradation and trends
	BaselineWindow time.Duration `mapstructure:"baseline_window"`

	Alerts     AlertThresholds  `mapstructure:"alerts"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// AlertThresholds 告警阈值
type AlertThresholds struct {
	// HitRateWarning warn when the hit rate falls below it
	HitRateWarning float64 `mapstructure:"hit_rate_warning"`

	// UtilizationCritical critical when utilization rises above it
	UtilizationCritical float64 `mapstructure:"utilization_critical"`

	// EvictionRateWarning warn when evictions per minute exceed it
	EvictionRateWarning float64 `mapstructure:"eviction_rate_warning"`
}

// PrometheusConfig /metrics exposition
type PrometheusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		RingCapacity:         1000,
		PollInterval:         30 * time.Second,
		TrendSensitivity:     0.05,
		DegradationThreshold: 0.15,
		RecentWindow:         5 * time.Minute,
		BaselineWindow:       time.Hour,
		Alerts: AlertThresholds{
			HitRateWarning:      0.70,
			UtilizationCritical: 0.90,
			EvictionRateWarning: 100,
		},
		Prometheus: PrometheusConfig{
			Enabled:   true,
			Namespace: "cachengine",
		},
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.RingCapacity == 0 {
		c.RingCapacity = def.RingCapacity
	}
	if c.PollInterval == 0 {
		c.PollInterval = def.PollInterval
	}
	if c.TrendSensitivity == 0 {
		c.TrendSensitivity = def.TrendSensitivity
	}
	if c.DegradationThreshold == 0 {
		c.DegradationThreshold = def.DegradationThreshold
	}
	if c.RecentWindow == 0 {
		c.RecentWindow = def.RecentWindow
	}
	if c.BaselineWindow == 0 {
		c.BaselineWindow = def.BaselineWindow
	}
	if c.Alerts.HitRateWarning == 0 {
		c.Alerts.HitRateWarning = def.Alerts.HitRateWarning
	}
	if c.Alerts.UtilizationCritical == 0 {
		c.Alerts.UtilizationCritical = def.Alerts.UtilizationCritical
	}
	if c.Alerts.EvictionRateWarning == 0 {
		c.Alerts.EvictionRateWarning = def.Alerts.EvictionRateWarning
	}
	if c.Prometheus.Namespace == "" {
		c.Prometheus.Namespace = def.Prometheus.Namespace
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RingCapacity, validation.Min(2)),
		validation.Field(&c.PollInterval, validation.Min(time.Second)),
		validation.Field(&c.TrendSensitivity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DegradationThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.RecentWindow, validation.Min(time.Second)),
		validation.Field(&c.BaselineWindow, validation.By(func(interface{}) error {
			if c.BaselineWindow < c.RecentWindow {
				return validation.NewError("validation_baseline_window", "baseline_window 不能小于 recent_window")
			}
			return nil
		})),
		validation.Field(&c.Alerts),
	)
}

// Validate checks the thresholds
func (a AlertThresholds) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.HitRateWarning, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&a.UtilizationCritical, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&a.EvictionRateWarning, validation.Min(0.0)),
	)
}
