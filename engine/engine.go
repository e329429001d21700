// Package engine assembles the caching engine: the durable tier, the
// coordinator, invalidation, metrics, warming and the background scheduler,
// all driven from one Config.
package engine

import (
	"context"
	"sync"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/health"
	"github.com/KOMKZ/go-yogan-cache/invalidation"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	"github.com/KOMKZ/go-yogan-cache/scheduler"
	"github.com/KOMKZ/go-yogan-cache/telemetry"
	"github.com/KOMKZ/go-yogan-cache/validator"
	"github.com/KOMKZ/go-yogan-cache/warming"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures Build
type Option func(*options)

type options struct {
	loggers        *logger.Manager
	durable        cache.DurableTier
	coordinatorOps []cache.CoordinatorOption
}

// WithLoggerManager gives every part its own module logger
func WithLoggerManager(m *logger.Manager) Option {
	return func(o *options) {
		o.loggers = m
	}
}

// WithDurableTier uses tier instead of opening durable.driver. It is
// wrapped in a GuardedDurable with the durable config.
func WithDurableTier(tier cache.DurableTier) Option {
	return func(o *options) {
		o.durable = tier
	}
}

// WithCoordinatorOptions appends coordinator options, e.g. cache.WithClock
func WithCoordinatorOptions(opts ...cache.CoordinatorOption) Option {
	return func(o *options) {
		o.coordinatorOps = append(o.coordinatorOps, opts...)
	}
}

func (o *options) logger(module string) *logger.CtxZapLogger {
	if o.loggers == nil {
		return logger.NewNopLogger()
	}
	return o.loggers.GetLogger(module)
}

// Engine owns every part of the cache and their lifecycle
type Engine struct {
	cfg Config
	log *logger.CtxZapLogger

	telemetry    *telemetry.Manager
	durable      *cache.GuardedDurable
	coordinator  *cache.Coordinator
	graph        *invalidation.Graph
	invalidation *invalidation.Engine
	analyzer     *metrics.Analyzer
	otelMetrics  *metrics.OTelMetrics
	promRegistry *prometheus.Registry
	tracker      *warming.PatternTracker
	warming      *warming.Engine
	scheduler    *scheduler.Scheduler
	health       *health.Aggregator

	mu      sync.Mutex
	started bool
	closed  bool
}

// Build wires the engine from cfg. Nothing runs in the background until Start.
// On failure everything already opened is closed again.
func Build(ctx context.Context, cfg Config, opts ...Option) (_ *Engine, err error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{cfg: cfg, log: o.logger("engine")}
	defer func() {
		if err != nil {
			_ = e.Shutdown(context.Background())
		}
	}()

	e.telemetry = telemetry.NewManager(cfg.Telemetry, o.logger("telemetry"))
	if err := e.telemetry.Start(ctx); err != nil {
		return nil, ErrBuild.Wrap(err)
	}

	if o.durable != nil {
		e.durable = cache.NewGuardedDurable(o.durable, cfg.Durable, o.logger("durable"))
	} else {
		e.durable, err = cache.OpenDurable(ctx, cfg.Durable, o.logger("durable"))
		if err != nil {
			return nil, err
		}
	}

	e.graph = invalidation.NewGraph()
	e.tracker = warming.NewPatternTracker(cfg.Warming.TrackerWindow, cfg.Warming.TrackerHistory)
	e.analyzer, err = metrics.NewAnalyzer(cfg.Metrics, nil, e,
		metrics.WithLogger(o.logger("metrics")),
		metrics.WithGetSampling(),
	)
	if err != nil {
		return nil, err
	}
	e.otelMetrics = metrics.NewOTelMetrics(cfg.Telemetry.Enabled && cfg.Telemetry.Metrics.Enabled, e, e.analyzer)

	coordOpts := []cache.CoordinatorOption{
		cache.WithObserver(cache.Observers{e.otelMetrics, metrics.NewGetSampler(e.analyzer.Collector())}),
		cache.WithAccessRecorder(e.tracker),
		cache.WithDependencyRecorder(e.graph),
		cache.WithLogger(o.logger("cache")),
		cache.WithTracer(e.telemetry.GetTracer("github.com/KOMKZ/go-yogan-cache/cache")),
	}
	if e.durable != nil {
		coordOpts = append(coordOpts, cache.WithDurable(e.durable))
	}
	e.coordinator = cache.NewCoordinator(cfg.Cache, append(coordOpts, o.coordinatorOps...)...)

	e.invalidation, err = invalidation.NewEngine(cfg.Invalidation, e.coordinator,
		invalidation.WithGraph(e.graph),
		invalidation.WithLogger(o.logger("invalidation")),
		invalidation.WithTracer(e.telemetry.GetTracer("github.com/KOMKZ/go-yogan-cache/invalidation")),
	)
	if err != nil {
		return nil, err
	}

	if err := e.telemetry.RegisterMetrics(e.otelMetrics); err != nil {
		return nil, ErrBuild.Wrap(err)
	}
	if cfg.Metrics.Prometheus.Enabled {
		e.promRegistry = metrics.NewRegistry(cfg.Metrics.Prometheus, e, e.analyzer)
	}

	e.warming, err = warming.NewEngine(cfg.Warming, e.coordinator,
		warming.WithTracker(e.tracker),
		warming.WithLogger(o.logger("warming")),
		warming.WithTracer(e.telemetry.GetTracer("github.com/KOMKZ/go-yogan-cache/warming")),
	)
	if err != nil {
		return nil, err
	}

	e.scheduler, err = scheduler.New(cfg.Scheduler, o.logger("scheduler"))
	if err != nil {
		return nil, err
	}

	e.health = health.NewAggregator(cfg.Health.Timeout)
	e.health.Register(
		health.NewMemoryChecker(e, cfg.Health.MemoryDegradedAt),
		health.NewDurableChecker(e.durable),
	)
	e.health.SetMetadata("service", cfg.Telemetry.ServiceName)

	e.log.InfoCtx(ctx, "✅ Cache engine built",
		zap.Int("max_entries", cfg.Cache.MaxEntries),
		zap.String("durable", cfg.Durable.Driver),
		zap.Int("rules", len(e.invalidation.Rules())),
	)
	return e, nil
}

// Config returns the applied configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// LayerStats delegates to the coordinator; metrics and health read it
func (e *Engine) LayerStats() []cache.LayerStats {
	if e.coordinator == nil {
		return nil
	}
	return e.coordinator.LayerStats()
}

// Coordinator returns the cache coordinator
func (e *Engine) Coordinator() *cache.Coordinator {
	return e.coordinator
}

// Invalidation returns the invalidation engine
func (e *Engine) Invalidation() *invalidation.Engine {
	return e.invalidation
}

// Analyzer returns the metrics analyzer
func (e *Engine) Analyzer() *metrics.Analyzer {
	return e.analyzer
}

// Warming returns the warming engine
func (e *Engine) Warming() *warming.Engine {
	return e.warming
}

// Scheduler returns the background scheduler
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Health returns the health aggregator
func (e *Engine) Health() *health.Aggregator {
	return e.health
}

// Telemetry returns the telemetry manager
func (e *Engine) Telemetry() *telemetry.Manager {
	return e.telemetry
}

// Durable returns the guarded durable tier; nil when memory-only
func (e *Engine) Durable() *cache.GuardedDurable {
	return e.durable
}

// PrometheusRegistry returns the /metrics registry; nil when disabled
func (e *Engine) PrometheusRegistry() *prometheus.Registry {
	return e.promRegistry
}

// Report polls the layers once and returns the analyzer report
func (e *Engine) Report(ctx context.Context) metrics.Report {
	e.analyzer.PollLayers(ctx)
	e.analyzer.CheckAlerts(ctx)
	return e.analyzer.GetComprehensiveReport()
}

// HealthCheck implements the samber/do health check hook
func (e *Engine) HealthCheck(ctx context.Context) error {
	resp := e.health.Check(ctx)
	if failing := resp.Unhealthy(); len(failing) > 0 {
		name := failing[0]
		return ErrUnhealthy.WithMsgf("健康检查失败: %s: %s", name, resp.Checks[name].Error)
	}
	return nil
}
