// Package httpx serves the cache engine's report and write-hook API over gin
package httpx

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config HTTP 服务配置（http.*）
type Config struct {
	Enabled         bool               `mapstructure:"enabled" json:"enabled"`
	Addr            string             `mapstructure:"addr" json:"addr"`
	Mode            string             `mapstructure:"mode" json:"mode"` // debug, release, test
	ReadTimeout     time.Duration      `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration      `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration      `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	Trace           bool               `mapstructure:"trace" json:"trace"` // otelgin spans per request
	RequestLog      RequestLogConfig   `mapstructure:"request_log" json:"request_log"`
	ErrorLogging    ErrorLoggingConfig `mapstructure:"error_logging" json:"error_logging"`
}

// RequestLogConfig HTTP request log configuration
type RequestLogConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// SkipPaths list of paths to skip recording
	SkipPaths []string `mapstructure:"skip_paths" json:"skip_paths"`
}

// ErrorLoggingConfig Error logging configuration
type ErrorLoggingConfig struct {
	// Enable error log recording (default false)
	Enable bool `mapstructure:"enable" json:"enable"`

	// IgnoreHTTPStatus Ignored HTTP status codes (do not log)
	// For example: []int{400, 404} indicates that errors 400 and 404 are not recorded
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`

	// Whether to record the full error chain (default true)
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`

	// LogLevel log level: error, warn, info (default is error)
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Addr:            ":8080",
		Mode:            "release",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestLog: RequestLogConfig{
			Enabled:   true,
			SkipPaths: []string{"/healthz", "/metrics"},
		},
		ErrorLogging: DefaultErrorLoggingConfig(),
	}
}

// DefaultErrorLoggingConfig returns the default configuration (logging disabled by default)
func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		Enable:           false,
		IgnoreHTTPStatus: []int{},
		FullErrorChain:   true,
		LogLevel:         "error",
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.ErrorLogging.LogLevel == "" {
		c.ErrorLogging.LogLevel = def.ErrorLogging.LogLevel
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ErrorLogging),
	)
}

// Validate checks the log level
func (c ErrorLoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("error", "warn", "info")),
	)
}

// LoadConfig reads http.* over the defaults and validates it
func LoadConfig(loader component.ConfigLoader) (Config, error) {
	cfg := DefaultConfig()
	if loader.IsSet("http") {
		if err := loader.Unmarshal("http", &cfg); err != nil {
			return Config{}, fmt.Errorf("读取 http 配置失败: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, nil); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
