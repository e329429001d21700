package invalidation

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config invalidation engine settings (invalidation.*)
type Config struct {
	// BatchDelay window for coalescing batched invalidations (10ms - 5s)
	BatchDelay time.Duration `mapstructure:"batch_delay"`

	// MaxCascadeDepth caps relationship fan-out regardless of the relationship's own depth
	MaxCascadeDepth int `mapstructure:"max_cascade_depth"`

	// DependencyMaxDepth bounds InvalidateWithDependencies; 0 means unbounded
	DependencyMaxDepth int `mapstructure:"dependency_max_depth"`

	Relationships []RelationshipConfig `mapstructure:"relationships"`
	Rules         []RuleConfig         `mapstructure:"rules"`
}

// RuleConfig a rule declared in configuration. Conditions can only be
// attached in code.
type RuleConfig struct {
	Name           string   `mapstructure:"name"`
	TriggerTags    []string `mapstructure:"trigger_tags"`
	InvalidateTags []string `mapstructure:"invalidate_tags"`
	Strategy       string   `mapstructure:"strategy"`
	Priority       int      `mapstructure:"priority"`
	Pattern        string   `mapstructure:"pattern"`
	Relationship   string   `mapstructure:"relationship"`
}

// Rule converts the config form
func (c RuleConfig) Rule() Rule {
	return Rule{
		Name:           c.Name,
		TriggerTags:    c.TriggerTags,
		InvalidateTags: c.InvalidateTags,
		Strategy:       Strategy(c.Strategy),
		Priority:       c.Priority,
		Pattern:        c.Pattern,
		Relationship:   c.Relationship,
	}
}

// RelationshipConfig a DataRelationship declared in configuration
type RelationshipConfig struct {
	SourceType   string   `mapstructure:"source_type"`
	TargetTypes  []string `mapstructure:"target_types"`
	CascadeDepth int      `mapstructure:"cascade_depth"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		BatchDelay:      100 * time.Millisecond,
		MaxCascadeDepth: 3,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.BatchDelay == 0 {
		c.BatchDelay = def.BatchDelay
	}
	if c.MaxCascadeDepth == 0 {
		c.MaxCascadeDepth = def.MaxCascadeDepth
	}
	for i := range c.Rules {
		if c.Rules[i].Strategy == "" {
			c.Rules[i].Strategy = string(StrategyImmediate)
		}
	}
}

// Validate checks the configuration. Rules and relationships are validated
// again, individually, when the engine registers them.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BatchDelay,
			validation.Min(10*time.Millisecond),
			validation.Max(5*time.Second),
		),
		validation.Field(&c.MaxCascadeDepth, validation.Min(1), validation.Max(10)),
		validation.Field(&c.DependencyMaxDepth, validation.Min(0)),
	)
}
