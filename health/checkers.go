package health

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-cache/cache"
)

// DurableChecker reports the durable tier. A failing tier degrades the
// engine to memory-only; it never makes it unhealthy.
type DurableChecker struct {
	tier *cache.GuardedDurable
}

// NewDurableChecker returns nil when no durable tier is configured
func NewDurableChecker(tier *cache.GuardedDurable) Checker {
	if tier == nil {
		return nil
	}
	return &DurableChecker{tier: tier}
}

func (c *DurableChecker) Name() string {
	return "durable:" + c.tier.Name()
}

func (c *DurableChecker) Check(ctx context.Context) error {
	if state := c.tier.BreakerState(); state == "open" {
		return Degraded(fmt.Errorf("circuit breaker open"))
	}
	if err := c.tier.Ping(ctx); err != nil {
		return Degraded(err)
	}
	return nil
}

// StatsSource provides per-layer statistics
type StatsSource interface {
	LayerStats() []cache.LayerStats
}

// MemoryChecker reports the in-process tier
type MemoryChecker struct {
	source     StatsSource
	degradedAt float64
}

// NewMemoryChecker degrades once utilization reaches degradedAt
func NewMemoryChecker(source StatsSource, degradedAt float64) *MemoryChecker {
	return &MemoryChecker{source: source, degradedAt: degradedAt}
}

func (c *MemoryChecker) Name() string {
	return cache.LayerMemory
}

func (c *MemoryChecker) Check(ctx context.Context) error {
	for _, s := range c.source.LayerStats() {
		if s.Layer != cache.LayerMemory {
			continue
		}
		if !s.Available {
			return fmt.Errorf("memory tier unavailable")
		}
		if c.degradedAt > 0 && s.Utilization() >= c.degradedAt {
			return Degraded(fmt.Errorf("memory tier %.0f%% full", s.Utilization()*100))
		}
		return nil
	}
	return fmt.Errorf("memory tier not reported")
}
