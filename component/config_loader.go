package component

// ConfigLoader is the read side of config.Loader that components depend on
type ConfigLoader interface {
	Get(key string) interface{}

	// Unmarshal decodes the section at key into v
	Unmarshal(key string, v interface{}) error

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	IsSet(key string) bool
}
