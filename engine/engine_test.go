package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/config"
	"github.com/KOMKZ/go-yogan-cache/health"
	"github.com/KOMKZ/go-yogan-cache/invalidation"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	"github.com/KOMKZ/go-yogan-cache/redis"
	"github.com/KOMKZ/go-yogan-cache/warming"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cache.MaxEntries = 100
	cfg.Durable.Driver = cache.DriverMemory
	cfg.Metrics.Prometheus.Enabled = true
	cfg.Invalidation.Rules = []invalidation.RuleConfig{{
		Name:           "user-profile",
		TriggerTags:    []string{"user"},
		InvalidateTags: []string{"profile:{id}"},
		Strategy:       string(invalidation.StrategyImmediate),
	}}
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := Build(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e
}

func constant(v string) cache.ComputeFunc {
	return func(context.Context) ([]byte, error) { return []byte(v), nil }
}

func TestBuild_WritesInvalidatesAndReports(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, testConfig())
	c := e.Coordinator()

	v, err := c.GetOrCompute(ctx, "profile:42", constant("alice"), cache.WithTags("profile:42"))
	require.NoError(t, err)
	assert.Equal(t, []byte("alice"), v)
	_, ok := c.Get(ctx, "profile:42")
	assert.True(t, ok)

	res, err := e.Invalidation().InvalidateByWrite(ctx, "user", "42", "update", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	_, ok = c.Get(ctx, "profile:42")
	assert.False(t, ok, "removed from both tiers")

	var hits []float64
	for _, s := range e.Analyzer().Collector().Samples(cache.LayerMemory, metrics.MetricHitRate, 0) {
		hits = append(hits, s.Value)
	}
	assert.Equal(t, []float64{0, 1, 0}, hits, "one sample per lookup")
	assert.Len(t, e.Analyzer().Collector().Samples(cache.LayerDurable, metrics.MetricHitRate, 0), 2)

	report := e.Report(ctx)
	require.Len(t, report.Layers, 2)
	assert.Equal(t, cache.LayerMemory, report.Layers[0].Layer)
	assert.Equal(t, cache.LayerDurable, report.Layers[1].Layer)

	require.NotNil(t, e.PrometheusRegistry())
	families, err := e.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	hot := e.Warming().Tracker().GetHotKeys(5)
	require.NotEmpty(t, hot)
	assert.Equal(t, "profile:42", hot[0].Key)
}

func TestBuild_DependencyCascade(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, testConfig())
	c := e.Coordinator()

	require.NoError(t, c.Set(ctx, "user:1", []byte("u"), time.Minute))
	_, err := c.GetOrCompute(ctx, "feed:1", constant("f"), cache.WithDependsOn("user:1"))
	require.NoError(t, err)

	n, err := e.Invalidation().InvalidateWithDependencies(ctx, "user:1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, ok := c.Get(ctx, "feed:1")
	assert.False(t, ok)
}

func TestEngine_StartWarmsAndSchedules(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, testConfig())

	_, err := e.Warming().RegisterTask(warming.Task{Key: "config:global", Compute: constant("{}"), TTL: time.Hour}, true)
	require.NoError(t, err)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Start(ctx), "second start is a no-op")

	v, ok := e.Coordinator().Get(ctx, "config:global")
	require.True(t, ok, "critical data warmed on start")
	assert.Equal(t, []byte("{}"), v)

	jobs := e.Scheduler().Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{JobCacheSweep, JobMetricsPoll, JobWarmingDue, JobWarmingOptimize}, names)

	require.NoError(t, e.Scheduler().RunNow(JobMetricsPoll))
	assert.Eventually(t, func() bool {
		return len(e.Analyzer().Collector().Samples(cache.LayerMemory, metrics.MetricUtilization, time.Hour)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.Shutdown(ctx))
	require.NoError(t, e.Shutdown(ctx))
	assert.True(t, errors.Is(e.Start(ctx), ErrClosed))
}

func TestEngine_WarmOnStartDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	off := false
	cfg.Warming.WarmOnStart = &off
	e := newTestEngine(t, cfg)

	_, err := e.Warming().RegisterTask(warming.Task{Key: "config:global", Compute: constant("{}")}, true)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))

	_, ok := e.Coordinator().Get(ctx, "config:global")
	assert.False(t, ok)
}

func TestEngine_ShutdownFlushesBatches(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Durable.Driver = cache.DriverNone
	cfg.Invalidation.BatchDelay = 5 * time.Second
	cfg.Invalidation.Rules = []invalidation.RuleConfig{{
		Name:           "orders",
		TriggerTags:    []string{"order"},
		InvalidateTags: []string{"orders"},
		Strategy:       string(invalidation.StrategyBatched),
	}}
	log := logger.NewTestCtxLogger("engine")
	e := newTestEngine(t, cfg)
	e.log = log.CtxZapLogger

	require.NoError(t, e.Coordinator().Set(ctx, "orders:recent", []byte("[]"), time.Minute, "orders"))
	res, err := e.Invalidation().InvalidateByWrite(ctx, "order", "7", "create", nil)
	require.NoError(t, err)
	require.Len(t, res.Fired, 1)
	assert.True(t, res.Fired[0].Deferred)

	_, ok := e.Coordinator().Get(ctx, "orders:recent")
	assert.True(t, ok, "still cached until the batch window closes")

	require.NoError(t, e.Shutdown(ctx))
	_, ok = e.Coordinator().Get(ctx, "orders:recent")
	assert.False(t, ok, "pending batch flushed on shutdown")
	assert.True(t, log.HasLog("info", "✅ Cache engine stopped"))
}

func TestEngine_RedisDurableHealth(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(ctx, redis.Config{Addrs: []string{mr.Addr()}, DialTimeout: 200 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer client.Close()

	cfg := testConfig()
	cfg.Durable.Driver = cache.DriverRedis
	cfg.Durable.Redis = redis.Config{Addrs: []string{mr.Addr()}}
	e := newTestEngine(t, cfg, WithDurableTier(cache.NewRedisDurable(client, "t:")))

	require.NoError(t, e.Coordinator().Set(ctx, "product:9", []byte("p"), time.Minute, "product"))
	assert.True(t, mr.Exists("t:product:9"))

	resp := e.Health().Check(ctx)
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.NoError(t, e.HealthCheck(ctx))

	mr.Close()
	resp = e.Health().Check(ctx)
	assert.Equal(t, health.StatusDegraded, resp.Status)
	assert.NoError(t, e.HealthCheck(ctx), "degraded is still serving")

	v, ok := e.Coordinator().Get(ctx, "product:9")
	assert.True(t, ok, "memory tier keeps serving")
	assert.Equal(t, []byte("p"), v)
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Invalidation.BatchDelay = time.Hour
	_, err := Build(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrConfigInvalid))

	cfg = testConfig()
	cfg.Invalidation.Rules[0].Strategy = "eventually"
	_, err = Build(context.Background(), cfg)
	assert.True(t, errors.Is(err, invalidation.ErrRuleInvalid))
}

func TestLoadConfig(t *testing.T) {
	loader := config.NewLoader()
	loader.AddSource(config.NewMapSource("test", 1, map[string]interface{}{
		"cache.max_entries":               50,
		"durable.driver":                  "memory",
		"invalidation.batch_delay":        "50ms",
		"warming.warm_on_start":           false,
		"metrics.alerts.hit_rate_warning": 0.5,
	}))
	require.NoError(t, loader.Load())

	cfg, err := LoadConfig(loader)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, cache.DriverMemory, cfg.Durable.Driver)
	assert.Equal(t, 50*time.Millisecond, cfg.Invalidation.BatchDelay)
	assert.False(t, *cfg.Warming.WarmOnStart)
	assert.Equal(t, 0.5, cfg.Metrics.Alerts.HitRateWarning)
	assert.Equal(t, 0.90, cfg.Metrics.Alerts.UtilizationCritical, "unset keys keep defaults")
	assert.Equal(t, time.Minute, cfg.Scheduler.SweepInterval)

	bad := config.NewLoader()
	bad.AddSource(config.NewMapSource("test", 1, map[string]interface{}{"durable.driver": "etcd"}))
	require.NoError(t, bad.Load())
	_, err = LoadConfig(bad)
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestComponent_InRegistry(t *testing.T) {
	ctx := context.Background()
	loader := config.NewLoader()
	loader.AddSource(config.NewMapSource("test", 1, map[string]interface{}{
		"durable.driver":        "memory",
		"warming.warm_on_start": false,
	}))
	require.NoError(t, loader.Load())

	comp := NewComponent()
	reg := component.NewRegistry()
	require.NoError(t, reg.Register(comp))
	require.NoError(t, reg.Init(ctx, loader))
	require.NoError(t, reg.Start(ctx))
	require.NotNil(t, comp.Engine())

	checkers := reg.HealthCheckers()
	require.Len(t, checkers, 1)
	assert.Equal(t, component.ComponentCache, checkers[0].Name())
	assert.NoError(t, checkers[0].Check(ctx))

	require.NoError(t, reg.Stop(ctx))
	assert.True(t, errors.Is(comp.Engine().Start(ctx), ErrClosed))
}
