package logger

import (
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap/zapcore"
)

var validLevels = []interface{}{"debug", "info", "warn", "error", "fatal"}

// ManagerConfig is shared by every module logger created from one Manager
type ManagerConfig struct {
	BaseLogDir       string `mapstructure:"base_log_dir"`
	Level            string `mapstructure:"level"`
	AppName          string `mapstructure:"app_name"`
	Encoding         string `mapstructure:"encoding"` // json or console
	EnableConsole    bool   `mapstructure:"enable_console"`
	EnableFile       bool   `mapstructure:"enable_file"`
	MaxSize          int    `mapstructure:"max_size"` // MB
	MaxBackups       int    `mapstructure:"max_backups"`
	MaxAge           int    `mapstructure:"max_age"` // days
	Compress         bool   `mapstructure:"compress"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	StacktraceLevel  string `mapstructure:"stacktrace_level"`
	StacktraceDepth  int    `mapstructure:"stacktrace_depth"`
	EnableTraceID    bool   `mapstructure:"enable_trace_id"`
	TraceIDFieldName string `mapstructure:"trace_id_field_name"`
}

// DefaultManagerConfig returns the defaults used when no logger section is configured
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BaseLogDir:       "logs",
		Level:            "info",
		AppName:          "cachengine",
		Encoding:         "json",
		EnableConsole:    true,
		EnableFile:       false,
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           28,
		Compress:         true,
		EnableCaller:     true,
		EnableStacktrace: true,
		StacktraceLevel:  "error",
		StacktraceDepth:  5,
		EnableTraceID:    true,
		TraceIDFieldName: "trace_id",
	}
}

// ApplyDefaults fills zero-valued fields in place.
// Booleans cannot be told apart from "unset" and are left alone.
func (c *ManagerConfig) ApplyDefaults() {
	d := DefaultManagerConfig()
	if c.BaseLogDir == "" {
		c.BaseLogDir = d.BaseLogDir
	}
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.AppName == "" {
		c.AppName = d.AppName
	}
	if c.Encoding == "" {
		c.Encoding = d.Encoding
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = d.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = d.StacktraceLevel
	}
	if c.StacktraceDepth == 0 {
		c.StacktraceDepth = d.StacktraceDepth
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = d.TraceIDFieldName
	}
}

// Validate checks enums and ranges
func (c ManagerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In(validLevels...)),
		validation.Field(&c.Encoding, validation.Required, validation.In("json", "console")),
		validation.Field(&c.MaxSize, validation.Min(1), validation.Max(10000)),
		validation.Field(&c.MaxBackups, validation.Min(0), validation.Max(1000)),
		validation.Field(&c.MaxAge, validation.Min(0), validation.Max(3650)),
		validation.Field(&c.StacktraceLevel, validation.In(validLevels...)),
	)
}

// ParseLevel maps a level name to zapcore, defaulting to info
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// logs/<module>/<module>-info.log
func (c ManagerConfig) infoFilePath(module string) string {
	return filepath.Join(c.BaseLogDir, module, module+"-info.log")
}

// logs/<module>/<module>-error.log
func (c ManagerConfig) errorFilePath(module string) string {
	return filepath.Join(c.BaseLogDir, module, module+"-error.log")
}
