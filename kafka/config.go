package kafka

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config write-hook consumer settings (kafka.*)
type Config struct {
	// Enabled starts the consumer with the engine
	Enabled bool `mapstructure:"enabled"`

	// List of Kafka cluster addresses for brokers
	Brokers []string `mapstructure:"brokers"`

	// Kafka version (e.g., "3.8.0")
	Version string `mapstructure:"version"`

	// ClientID client identifier
	ClientID string `mapstructure:"client_id"`

	// Consumer configuration
	Consumer ConsumerConfig `mapstructure:"consumer"`

	// SASL authentication configuration (optional)
	SASL *SASLConfig `mapstructure:"sasl"`

	// TLS configuration (optional)
	TLS *TLSConfig `mapstructure:"tls"`
}

// ConsumerConfig consumer configuration
type ConsumerConfig struct {
	// GroupID consumer group ID
	GroupID string `mapstructure:"group_id"`

	// Topics carrying write events
	Topics []string `mapstructure:"topics"`

	// OffsetInitial Initial Offset: -1=Newest, -2=Oldest
	OffsetInitial int64 `mapstructure:"offset_initial"`

	// AutoCommitInterval auto commit interval
	AutoCommitInterval time.Duration `mapstructure:"auto_commit_interval"`

	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// Maximum processing time for individual message
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`

	// RebalanceStrategy rebalancing strategy: range, roundrobin, sticky
	RebalanceStrategy string `mapstructure:"rebalance_strategy"`

	// RetryBackoff wait between failed Consume sessions
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// SASLConfig SASL authentication configuration
type SASLConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Authentication mechanism: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `mapstructure:"mechanism"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TLSConfig TLS configuration
type TLSConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// CertFile/KeyFile client certificate, both or neither
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// CAFile CA bundle; system roots when empty
	CAFile string `mapstructure:"ca_file"`

	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// DefaultConfig 默认配置（关闭）
func DefaultConfig() Config {
	return Config{
		Version:  "3.8.0",
		ClientID: "cachengine",
		Consumer: ConsumerConfig{
			GroupID:            "cachengine-invalidation",
			Topics:             []string{"cache.write-events"},
			OffsetInitial:      -1,
			AutoCommitInterval: time.Second,
			SessionTimeout:     10 * time.Second,
			HeartbeatInterval:  3 * time.Second,
			MaxProcessingTime:  time.Second,
			RebalanceStrategy:  "range",
			RetryBackoff:       2 * time.Second,
		},
	}
}

// ApplyDefaults Apply default values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}

	d := def.Consumer
	if c.Consumer.GroupID == "" {
		c.Consumer.GroupID = d.GroupID
	}
	if len(c.Consumer.Topics) == 0 {
		c.Consumer.Topics = d.Topics
	}
	if c.Consumer.OffsetInitial == 0 {
		c.Consumer.OffsetInitial = d.OffsetInitial
	}
	if c.Consumer.AutoCommitInterval == 0 {
		c.Consumer.AutoCommitInterval = d.AutoCommitInterval
	}
	if c.Consumer.SessionTimeout == 0 {
		c.Consumer.SessionTimeout = d.SessionTimeout
	}
	if c.Consumer.HeartbeatInterval == 0 {
		c.Consumer.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.Consumer.MaxProcessingTime == 0 {
		c.Consumer.MaxProcessingTime = d.MaxProcessingTime
	}
	if c.Consumer.RebalanceStrategy == "" {
		c.Consumer.RebalanceStrategy = d.RebalanceStrategy
	}
	if c.Consumer.RetryBackoff == 0 {
		c.Consumer.RetryBackoff = d.RetryBackoff
	}
}

// Validate checks the configuration; a disabled consumer is not checked
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Brokers, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.Version, validation.Required),
		validation.Field(&c.Consumer),
		validation.Field(&c.SASL),
		validation.Field(&c.TLS),
	)
}

// Validate consumer configuration
func (c ConsumerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.GroupID, validation.Required),
		validation.Field(&c.Topics, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.OffsetInitial, validation.In(int64(-1), int64(-2))),
		validation.Field(&c.RebalanceStrategy, validation.In("range", "roundrobin", "sticky")),
	)
}

// Validate SASL configuration
func (c SASLConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mechanism, validation.Required, validation.In("PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512")),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// Validate TLS configuration
func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.CertFile, validation.When(c.KeyFile != "", validation.Required)),
		validation.Field(&c.KeyFile, validation.When(c.CertFile != "", validation.Required)),
	)
}

// LoadConfig reads kafka.* over the defaults and validates it
func LoadConfig(loader component.ConfigLoader) (Config, error) {
	cfg := DefaultConfig()
	if loader.IsSet("kafka") {
		if err := loader.Unmarshal("kafka", &cfg); err != nil {
			return Config{}, fmt.Errorf("读取 kafka 配置失败: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, nil); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
