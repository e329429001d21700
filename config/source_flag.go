package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// FlagSource exposes explicitly changed cobra/pflag flags as config keys
type FlagSource struct {
	flags    *pflag.FlagSet
	bindings map[string]string // flag name -> config key
	priority int
}

// NewFlagSource creates a flag source. Flags without a binding map to their
// name with dashes turned into dots.
func NewFlagSource(flags *pflag.FlagSet, bindings map[string]string, priority int) *FlagSource {
	if bindings == nil {
		bindings = map[string]string{}
	}
	return &FlagSource{flags: flags, bindings: bindings, priority: priority}
}

func (s *FlagSource) Name() string  { return "flags" }
func (s *FlagSource) Priority() int { return s.priority }

func (s *FlagSource) Load() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if s.flags == nil {
		return out, nil
	}
	s.flags.Visit(func(f *pflag.Flag) {
		key, ok := s.bindings[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", ".")
		}
		out[key] = f.Value.String()
	})
	return out, nil
}
