package httpx

import (
	"context"

	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/logger"
)

// Component serves the engine owned by an engine.Component
type Component struct {
	cache  *engine.Component
	logger *logger.CtxZapLogger
	server *Server
}

// NewComponent creates the HTTP component for cache
func NewComponent(cache *engine.Component, log *logger.CtxZapLogger) *Component {
	if log == nil {
		log = logger.GetLogger("httpx")
	}
	return &Component{cache: cache, logger: log}
}

func (c *Component) Name() string {
	return component.ComponentHTTPServer
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentCache}
}

// Init reads http.*; a disabled server is skipped by Start and Stop
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	cfg, err := LoadConfig(loader)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		c.logger.InfoCtx(ctx, "HTTP server disabled")
		return nil
	}
	c.server = NewServer(cfg, c.cache.Engine(), c.logger)
	return nil
}

func (c *Component) Start(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Start(ctx)
}

func (c *Component) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Stop(ctx)
}

// Server returns the server; nil when disabled
func (c *Component) Server() *Server {
	return c.server
}
