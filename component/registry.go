package component

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const optionalPrefix = "optional:"

// Registry starts components in dependency order and stops them in reverse
type Registry struct {
	mu         sync.Mutex
	components map[string]Component
	order      []string // registration order, used as the tiebreak
	started    []Component
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]Component)}
}

// Register adds a component; names must be unique
func (r *Registry) Register(comp Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := comp.Name()
	if name == "" {
		return fmt.Errorf("component name is empty")
	}
	if _, ok := r.components[name]; ok {
		return fmt.Errorf("component %s already registered", name)
	}
	r.components[name] = comp
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered component
func (r *Registry) Get(name string) (Component, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[name]
	return c, ok
}

// Resolve returns components sorted so that dependencies come first
func (r *Registry) Resolve() ([]Component, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.components))
	sorted := make([]Component, 0, len(r.components))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("component dependency cycle: %s", strings.Join(append(path, name), " -> "))
		}
		state[name] = visiting
		comp := r.components[name]
		for _, dep := range comp.DependsOn() {
			optional := strings.HasPrefix(dep, optionalPrefix)
			dep = strings.TrimPrefix(dep, optionalPrefix)
			if _, ok := r.components[dep]; !ok {
				if optional {
					continue
				}
				return fmt.Errorf("component %s depends on unregistered %s", name, dep)
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		sorted = append(sorted, comp)
		return nil
	}

	for _, name := range r.order {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// Init initializes every component in dependency order
func (r *Registry) Init(ctx context.Context, loader ConfigLoader) error {
	comps, err := r.Resolve()
	if err != nil {
		return err
	}
	for _, c := range comps {
		if err := c.Init(ctx, loader); err != nil {
			return fmt.Errorf("init %s: %w", c.Name(), err)
		}
	}
	return nil
}

// Start starts every component in dependency order. On failure the
// components already started are stopped again.
func (r *Registry) Start(ctx context.Context) error {
	comps, err := r.Resolve()
	if err != nil {
		return err
	}
	for _, c := range comps {
		if err := c.Start(ctx); err != nil {
			_ = r.Stop(ctx)
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		r.mu.Lock()
		r.started = append(r.started, c)
		r.mu.Unlock()
	}
	return nil
}

// Stop stops started components in reverse order and returns the first error
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()

	var first error
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(ctx); err != nil && first == nil {
			first = fmt.Errorf("stop %s: %w", started[i].Name(), err)
		}
	}
	return first
}

// HealthCheckers collects checkers from components implementing HealthCheckProvider
func (r *Registry) HealthCheckers() []HealthChecker {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []HealthChecker
	for _, name := range r.order {
		if p, ok := r.components[name].(HealthCheckProvider); ok {
			if hc := p.GetHealthChecker(); hc != nil {
				out = append(out, hc)
			}
		}
	}
	return out
}
