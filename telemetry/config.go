package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config OpenTelemetry settings (telemetry.*)
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`             // Is enabled
	ServiceName    string                 `mapstructure:"service_name"`        // service name
	ServiceVersion string                 `mapstructure:"service_version"`     // service version
	Exporter       ExporterConfig         `mapstructure:"exporter"`            // exporter configuration
	Sampler        SamplerConfig          `mapstructure:"sampler"`             // Sampling configuration
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes"` // Resource attributes (support nesting)
	Batch          BatchConfig            `mapstructure:"batch"`               // Span batch processing
	Metrics        MetricsConfig          `mapstructure:"metrics"`             // Metrics export
}

// ExporterConfig exporter configuration
type ExporterConfig struct {
	Type     string            `mapstructure:"type"`     // otlp, stdout, noop
	Endpoint string            `mapstructure:"endpoint"` // Export endpoint
	Insecure bool              `mapstructure:"insecure"` // Whether to use an insecure connection
	Timeout  time.Duration     `mapstructure:"timeout"`  // Export timeout
	Headers  map[string]string `mapstructure:"headers"`  // Custom headers (authentication etc.)
}

// SamplerConfig Sampling configuration
type SamplerConfig struct {
	Type  string  `mapstructure:"type"`  // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"` // effective only with trace_id_ratio
}

// BatchConfig batch processing configuration
type BatchConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size"`
	ScheduleDelay      time.Duration `mapstructure:"schedule_delay"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout"`
}

// MetricsConfig periodic metric export
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout"`
}

// DefaultConfig 默认配置（关闭）
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "cachengine",
		ServiceVersion: "dev",
		Exporter: ExporterConfig{
			Type:     "otlp",
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Sampler: SamplerConfig{
			Type:  "parent_based_always_on",
			Ratio: 1.0,
		},
		Batch: BatchConfig{
			Enabled:            true,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
			ScheduleDelay:      5 * time.Second,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 30 * time.Second,
			ExportTimeout:  10 * time.Second,
		},
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = def.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = def.ServiceVersion
	}
	if c.Exporter.Type == "" {
		c.Exporter.Type = def.Exporter.Type
	}
	if c.Exporter.Endpoint == "" {
		c.Exporter.Endpoint = def.Exporter.Endpoint
	}
	if c.Exporter.Timeout == 0 {
		c.Exporter.Timeout = def.Exporter.Timeout
	}
	if c.Sampler.Type == "" {
		c.Sampler.Type = def.Sampler.Type
	}
	if c.Sampler.Ratio == 0 {
		c.Sampler.Ratio = def.Sampler.Ratio
	}
	if c.Batch.MaxQueueSize == 0 {
		c.Batch.MaxQueueSize = def.Batch.MaxQueueSize
	}
	if c.Batch.MaxExportBatchSize == 0 {
		c.Batch.MaxExportBatchSize = def.Batch.MaxExportBatchSize
	}
	if c.Batch.ScheduleDelay == 0 {
		c.Batch.ScheduleDelay = def.Batch.ScheduleDelay
	}
	if c.Batch.ExportTimeout == 0 {
		c.Batch.ExportTimeout = def.Batch.ExportTimeout
	}
	if c.Metrics.ExportInterval == 0 {
		c.Metrics.ExportInterval = def.Metrics.ExportInterval
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = def.Metrics.ExportTimeout
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter),
		validation.Field(&c.Sampler),
	)
}

// Validate checks the exporter
func (e ExporterConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required, validation.In("otlp", "stdout", "noop")),
		validation.Field(&e.Endpoint, validation.When(e.Type == "otlp", validation.Required)),
	)
}

// Validate checks the sampler
func (s SamplerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.In("always_on", "always_off", "trace_id_ratio", "parent_based_always_on")),
		validation.Field(&s.Ratio, validation.Min(0.0), validation.Max(1.0)),
	)
}
