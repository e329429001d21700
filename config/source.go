package config

// ConfigSource supplies flat, dot-separated configuration keys.
// Suggested priorities: defaults 1, config.yaml 10, <env>.yaml 20, env vars 50, flags 100.
type ConfigSource interface {
	Name() string
	Priority() int
	Load() (map[string]interface{}, error)
}

// MapSource is a fixed set of values (defaults, tests)
type MapSource struct {
	name     string
	priority int
	values   map[string]interface{}
}

// NewMapSource creates a source over values
func NewMapSource(name string, priority int, values map[string]interface{}) *MapSource {
	return &MapSource{name: name, priority: priority, values: values}
}

func (s *MapSource) Name() string  { return "map:" + s.name }
func (s *MapSource) Priority() int { return s.priority }

func (s *MapSource) Load() (map[string]interface{}, error) {
	return flattenMap("", s.values), nil
}
