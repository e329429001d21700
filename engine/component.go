package engine

import (
	"context"

	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/health"
)

// Component runs the engine inside a component.Registry
type Component struct {
	opts   []Option
	engine *Engine
}

// NewComponent creates the component; Init builds the engine
func NewComponent(opts ...Option) *Component {
	return &Component{opts: opts}
}

func (c *Component) Name() string {
	return component.ComponentCache
}

func (c *Component) DependsOn() []string {
	return nil
}

// Init loads the engine configuration from loader and builds the engine
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	cfg, err := LoadConfig(loader)
	if err != nil {
		return err
	}
	c.engine, err = Build(ctx, cfg, c.opts...)
	return err
}

func (c *Component) Start(ctx context.Context) error {
	return c.engine.Start(ctx)
}

func (c *Component) Stop(ctx context.Context) error {
	if c.engine == nil {
		return nil
	}
	return c.engine.Shutdown(ctx)
}

// Engine returns the built engine; nil before Init
func (c *Component) Engine() *Engine {
	return c.engine
}

// GetHealthChecker exposes the engine aggregate as one checker
func (c *Component) GetHealthChecker() component.HealthChecker {
	if c.engine == nil {
		return nil
	}
	return engineChecker{c.engine}
}

type engineChecker struct {
	e *Engine
}

func (engineChecker) Name() string {
	return component.ComponentCache
}

func (c engineChecker) Check(ctx context.Context) error {
	resp := c.e.health.Check(ctx)
	switch resp.Status {
	case health.StatusUnhealthy:
		return c.e.HealthCheck(ctx)
	case health.StatusDegraded:
		return health.Degraded(ErrUnhealthy.WithMsg("缓存引擎降级运行"))
	}
	return nil
}
