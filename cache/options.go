package cache

import (
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a single GetOrCompute call
type Option func(*callOptions)

type callOptions struct {
	ttl          time.Duration
	ttlSet       bool
	tags         []string
	forceRefresh bool
	timeout      time.Duration
	dependsOn    []string
}

// WithTTL sets the entry TTL; ttl <= 0 stores without expiry
func WithTTL(ttl time.Duration) Option {
	return func(o *callOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithTags attaches tags to the computed entry
func WithTags(tags ...string) Option {
	return func(o *callOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithForceRefresh skips the lookup and recomputes
func WithForceRefresh() Option {
	return func(o *callOptions) {
		o.forceRefresh = true
	}
}

// WithTimeout bounds the compute function
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithDependsOn records the computed key as a dependent of every source key
func WithDependsOn(sources ...string) Option {
	return func(o *callOptions) {
		o.dependsOn = append(o.dependsOn, sources...)
	}
}

// CoordinatorOption configures a Coordinator at construction
type CoordinatorOption func(*Coordinator)

// WithDurable attaches the second tier
func WithDurable(tier DurableTier) CoordinatorOption {
	return func(c *Coordinator) {
		c.durable = tier
	}
}

// WithObserver receives hit, eviction and expiration events
func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithAccessRecorder is told about every successful read
func WithAccessRecorder(r AccessRecorder) CoordinatorOption {
	return func(c *Coordinator) {
		c.access = r
	}
}

// WithDependencyRecorder receives WithDependsOn edges
func WithDependencyRecorder(r DependencyRecorder) CoordinatorOption {
	return func(c *Coordinator) {
		c.deps = r
	}
}

// WithLogger sets the coordinator logger
func WithLogger(log *logger.CtxZapLogger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) CoordinatorOption {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithSerializer overrides the envelope serializer
func WithSerializer(s Serializer) CoordinatorOption {
	return func(c *Coordinator) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}
