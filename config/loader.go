package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader merges several ConfigSources by priority and exposes the result through viper
type Loader struct {
	sources     []ConfigSource
	merged      map[string]interface{}
	v           *viper.Viper
	loadedFiles []string
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		merged: make(map[string]interface{}),
		v:      viper.New(),
	}
}

// AddSource registers a source; order does not matter, priority does
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load reads every source from low to high priority; later values win
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	l.merged = make(map[string]interface{})
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("加载数据源 %s 失败: %w", source.Name(), err)
		}
		if fs, ok := source.(*FileSource); ok && len(data) > 0 {
			l.loadedFiles = append(l.loadedFiles, fs.path)
		}
		for k, v := range data {
			l.merged[strings.ToLower(k)] = v
		}
	}

	l.v = viper.New()
	for key, value := range unflatten(l.merged) {
		l.v.Set(key, value)
	}
	return nil
}

// unflatten turns {"a.b.c": 1} into {"a": {"b": {"c": 1}}}
func unflatten(flat map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// shorter keys first so a deeper key can replace a scalar parent
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) < len(keys[j]) })

	for _, key := range keys {
		parts := strings.Split(key, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = flat[key]
	}
	return out
}

// Unmarshal decodes the section at key ("" for the whole tree) into v.
// Durations accept "100ms" style strings.
func (l *Loader) Unmarshal(key string, v interface{}) error {
	if key == "" {
		return l.v.Unmarshal(v)
	}
	return l.v.UnmarshalKey(key, v)
}

// Get returns the raw value at key
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns the string at key
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt returns the int at key
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool returns the bool at key
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet reports whether any source supplied key
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns the merged tree
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// LoadedFiles lists the files that contributed values
func (l *Loader) LoadedFiles() []string {
	return append([]string(nil), l.loadedFiles...)
}

// Reload re-reads every source
func (l *Loader) Reload() error {
	return l.Load()
}
