package config

import (
	"os"
	"strings"
)

// EnvSource maps PREFIX_SECTION__FIELD_NAME to section.field_name.
// A double underscore separates levels so single underscores survive in key names.
type EnvSource struct {
	prefix   string
	priority int
	environ  func() []string
}

// NewEnvSource creates an env source; an empty prefix loads nothing
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{prefix: prefix, priority: priority, environ: os.Environ}
}

func (s *EnvSource) Name() string  { return "env:" + s.prefix }
func (s *EnvSource) Priority() int { return s.priority }

func (s *EnvSource) Load() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if s.prefix == "" {
		return out, nil
	}

	prefix := s.prefix + "_"
	for _, kv := range s.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key != "" {
			out[key] = value
		}
	}
	return out, nil
}
