package invalidation

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Strategy how a firing rule is applied
type Strategy string

const (
	// StrategyImmediate invalidates before InvalidateByWrite returns
	StrategyImmediate Strategy = "immediate"
	// StrategyBatched queues the tags for the next batch flush
	StrategyBatched Strategy = "batched"
	// StrategyLazy marks the tags stale; entries are dropped on read or sweep
	StrategyLazy Strategy = "lazy"
	// StrategyCascade invalidates the tags, then everything derived from the removed keys
	StrategyCascade Strategy = "cascade"
)

// WriteContext describes the committed write a rule is evaluated against
type WriteContext struct {
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Operation    string         `json:"operation"`
	Data         map[string]any `json:"data,omitempty"`
}

// Condition decides whether a matched rule fires
type Condition func(WriteContext) bool

// Rule 失效规则
//
// InvalidateTags may reference the write with {type} and {id}, so
// "user:{id}" invalidates the written user's own tag.
type Rule struct {
	Name           string
	TriggerTags    []string
	InvalidateTags []string
	Strategy       Strategy
	Priority       int
	Condition      Condition
	Pattern        string
	Relationship   string

	re *regexp.Regexp
}

// Validate checks the rule definition
func (r Rule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.TriggerTags, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.InvalidateTags,
			validation.When(r.Pattern == "" && r.Relationship == "",
				validation.Required.Error("至少需要 invalidate_tags、pattern 或 relationship 之一")),
			validation.Each(validation.Required),
		),
		validation.Field(&r.Strategy, validation.Required,
			validation.In(StrategyImmediate, StrategyBatched, StrategyLazy, StrategyCascade)),
		validation.Field(&r.Pattern, validation.By(validPattern)),
	)
}

func validPattern(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := regexp.Compile(s); err != nil {
		return errors.New("正则表达式无效: " + err.Error())
	}
	return nil
}

// tagsFor expands {type} and {id} against the write
func (r *Rule) tagsFor(w WriteContext) []string {
	out := make([]string, 0, len(r.InvalidateTags))
	for _, t := range r.InvalidateTags {
		t = strings.ReplaceAll(t, "{type}", w.ResourceType)
		t = strings.ReplaceAll(t, "{id}", w.ResourceID)
		out = append(out, t)
	}
	return out
}

// DataRelationship declares that writes to SourceType invalidate the listed
// target types, following further relationships up to CascadeDepth levels
type DataRelationship struct {
	SourceType   string   `json:"source_type"`
	TargetTypes  []string `json:"target_types"`
	CascadeDepth int      `json:"cascade_depth"`
}

// Validate checks the relationship
func (r DataRelationship) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourceType, validation.Required),
		validation.Field(&r.TargetTypes, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.CascadeDepth, validation.Min(1)),
	)
}

// RuleStats per-rule execution counters
type RuleStats struct {
	Name        string    `json:"name"`
	Fired       int64     `json:"fired"`
	Skipped     int64     `json:"skipped"`
	Failed      int64     `json:"failed"`
	LastFiredAt time.Time `json:"last_fired_at,omitempty"`
}
