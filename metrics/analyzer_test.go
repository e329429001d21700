package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu    sync.Mutex
	stats []cache.LayerStats
}

func (s *stubSource) LayerStats() []cache.LayerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cache.LayerStats(nil), s.stats...)
}

func (s *stubSource) set(stats ...cache.LayerStats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func newTestAnalyzer(t *testing.T, src StatsSource, opts ...AnalyzerOption) (*Analyzer, *fakeClock) {
	t.Helper()
	c, clock := newTestCollector(1000)
	a, err := NewAnalyzer(Config{}, c, src, opts...)
	require.NoError(t, err)
	return a, clock
}

func TestAnalyzer_DetectPerformanceDegradation(t *testing.T) {
	t.Run("drop within the recent window", func(t *testing.T) {
		a, clock := newTestAnalyzer(t, nil)
		for _, v := range []float64{0.95, 0.93, 0.90, 0.88, 0.85, 0.75, 0.70, 0.65, 0.62, 0.60} {
			a.Collector().RecordMetric("memory", MetricHitRate, v)
			clock.Advance(10 * time.Second)
		}

		d := a.DetectPerformanceDegradation("memory")
		assert.True(t, d.Degraded)
		assert.Equal(t, 10, d.Samples)
		assert.InDelta(t, 0.902, d.Baseline, 1e-9)
		assert.InDelta(t, 0.664, d.Current, 1e-9)
		assert.InDelta(t, 0.238, d.Drop, 1e-9)
	})

	t.Run("recent window against baseline", func(t *testing.T) {
		a, clock := newTestAnalyzer(t, nil)
		for i := 0; i < 6; i++ {
			a.Collector().RecordMetric("memory", MetricHitRate, 0.9)
			clock.Advance(6 * time.Minute)
		}
		a.Collector().RecordMetric("memory", MetricHitRate, 0.5)
		a.Collector().RecordMetric("memory", MetricHitRate, 0.5)

		d := a.DetectPerformanceDegradation("memory")
		assert.True(t, d.Degraded)
		assert.InDelta(t, 0.5, d.Current, 1e-9)
		assert.InDelta(t, 0.8, d.Baseline, 1e-9)
	})

	t.Run("steady", func(t *testing.T) {
		a, _ := newTestAnalyzer(t, nil)
		for i := 0; i < 10; i++ {
			a.Collector().RecordMetric("memory", MetricHitRate, 0.9)
		}
		assert.False(t, a.DetectPerformanceDegradation("memory").Degraded)
	})

	t.Run("too few samples", func(t *testing.T) {
		a, _ := newTestAnalyzer(t, nil)
		a.Collector().RecordMetric("memory", MetricHitRate, 0.1)
		d := a.DetectPerformanceDegradation("memory")
		assert.False(t, d.Degraded)
		assert.Equal(t, 1, d.Samples)
	})
}

func TestAnalyzer_PollLayers(t *testing.T) {
	src := &stubSource{}
	a, clock := newTestAnalyzer(t, src)
	ctx := context.Background()

	src.set(cache.LayerStats{Layer: "memory", Size: 50, Capacity: 100, Hits: 80, Misses: 20, Evictions: 3})
	a.PollLayers(ctx)
	clock.Advance(time.Minute)
	src.set(cache.LayerStats{Layer: "memory", Size: 60, Capacity: 100, Hits: 90, Misses: 30, Evictions: 5, Expirations: 1})
	a.PollLayers(ctx)

	c := a.Collector()
	assert.Equal(t, []float64{0.8, 0.5}, values(c.Samples("memory", MetricHitRate, 0)))
	assert.Equal(t, []float64{0.5, 0.6}, values(c.Samples("memory", MetricUtilization, 0)))
	assert.Equal(t, []float64{3, 2}, values(c.Samples("memory", MetricEvictions, 0)))
	assert.Equal(t, []float64{0, 1}, values(c.Samples("memory", MetricExpirations, 0)))

	// no lookups since the previous poll
	a.PollLayers(ctx)
	assert.Len(t, c.Samples("memory", MetricHitRate, 0), 2)

	// durable tier without capacity records no utilization
	src.set(cache.LayerStats{Layer: "durable", Hits: 1, Misses: 1})
	a.PollLayers(ctx)
	assert.Empty(t, c.Samples("durable", MetricUtilization, 0))
	assert.Len(t, c.Samples("durable", MetricHitRate, 0), 1)
}

func TestAnalyzer_CheckAlerts(t *testing.T) {
	src := &stubSource{}
	log := logger.NewTestCtxLogger("metrics")
	var handled []Alert
	a, _ := newTestAnalyzer(t, src,
		WithLogger(log.CtxZapLogger),
		WithAlertHandler(func(al Alert) { handled = append(handled, al) }),
	)
	ctx := context.Background()

	src.set(cache.LayerStats{Layer: "memory", Size: 95, Capacity: 100, Hits: 50, Misses: 50, Evictions: 600})
	a.PollLayers(ctx)

	raised := a.CheckAlerts(ctx)
	require.Len(t, raised, 3)
	bySeverity := map[MetricType]Severity{}
	for _, al := range raised {
		assert.NotEmpty(t, al.ID)
		assert.Equal(t, "memory", al.Layer)
		bySeverity[al.Metric] = al.Severity
	}
	assert.Equal(t, SeverityWarning, bySeverity[MetricHitRate])
	assert.Equal(t, SeverityCritical, bySeverity[MetricUtilization])
	assert.Equal(t, SeverityWarning, bySeverity[MetricEvictions])
	assert.Len(t, handled, 3)
	assert.Equal(t, 3, log.CountLogs("warn"))
	assert.True(t, log.HasLog("warn", "cache alert raised"))

	t.Run("no duplicates while active", func(t *testing.T) {
		assert.Empty(t, a.CheckAlerts(ctx))
		assert.Len(t, a.ActiveAlerts(), 3)
	})

	t.Run("acknowledge re-arms the alert", func(t *testing.T) {
		var utilID string
		for _, al := range a.ActiveAlerts() {
			if al.Metric == MetricUtilization {
				utilID = al.ID
			}
		}
		require.NoError(t, a.Acknowledge(utilID))
		assert.Len(t, a.ActiveAlerts(), 2)

		again := a.CheckAlerts(ctx)
		require.Len(t, again, 1)
		assert.Equal(t, MetricUtilization, again[0].Metric)
		assert.NotEqual(t, utilID, again[0].ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := a.Acknowledge("missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAlertNotFound))
	})
}

func TestAnalyzer_HealthyLayerRaisesNothing(t *testing.T) {
	src := &stubSource{}
	a, _ := newTestAnalyzer(t, src)
	src.set(cache.LayerStats{Layer: "memory", Size: 10, Capacity: 100, Hits: 95, Misses: 5})
	a.PollLayers(context.Background())

	assert.Empty(t, a.CheckAlerts(context.Background()))
	assert.Empty(t, a.ActiveAlerts())
}

func TestAnalyzer_GetComprehensiveReport(t *testing.T) {
	src := &stubSource{}
	a, clock := newTestAnalyzer(t, src)
	ctx := context.Background()

	src.set(
		cache.LayerStats{Layer: "memory", Available: true, Size: 100, Capacity: 100, Hits: 900, Misses: 100, Evictions: 1000},
		cache.LayerStats{Layer: "durable", Available: false, Hits: 10, Misses: 90, Errors: 4},
	)
	a.PollLayers(ctx)
	a.CheckAlerts(ctx)
	clock.Advance(time.Second)

	rep := a.GetComprehensiveReport()
	require.Len(t, rep.Layers, 2)

	mem := rep.Layers[0]
	assert.Equal(t, "memory", mem.Layer)
	assert.InDelta(t, 0.9, mem.HitRate, 1e-9)
	assert.InDelta(t, 1.0, mem.Utilization, 1e-9)
	assert.InDelta(t, 200.0, mem.EvictionRate, 1e-9)
	assert.Equal(t, TrendStable, mem.HitRateTrend)

	dur := rep.Layers[1]
	assert.False(t, dur.Available)
	assert.Equal(t, int64(4), dur.Errors)

	joined := strings.Join(rep.Recommendations, "\n")
	assert.Contains(t, joined, "memory: 200 evictions/min with a healthy hit rate; increase capacity")
	assert.Contains(t, joined, "durable: misses dominate")
	assert.Contains(t, joined, "increase TTL")
	assert.Contains(t, joined, "durable: 4 backend errors")
	assert.Contains(t, joined, "durable: tier unavailable")
	assert.NotEmpty(t, rep.Alerts)

	raw, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"hit_rate_trend":"stable"`)
}

func TestNewAnalyzer_InvalidConfig(t *testing.T) {
	_, err := NewAnalyzer(Config{RecentWindow: time.Hour, BaselineWindow: time.Minute}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestGetSampler(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCollector(100)
	coord := cache.NewCoordinator(cache.Config{}, cache.WithObserver(NewGetSampler(c)))

	require.NoError(t, coord.Set(ctx, "k", []byte("v"), 0))
	_, _ = coord.Get(ctx, "k")
	_, _ = coord.Get(ctx, "missing")
	assert.Equal(t, []float64{1, 0}, values(c.Samples(cache.LayerMemory, MetricHitRate, 0)))

	src := &stubSource{}
	a, err := NewAnalyzer(Config{}, c, src, WithGetSampling())
	require.NoError(t, err)
	src.set(cache.LayerStats{Layer: cache.LayerMemory, Size: 1, Capacity: 10, Hits: 1, Misses: 1})
	a.PollLayers(ctx)
	assert.Len(t, c.Samples(cache.LayerMemory, MetricHitRate, 0), 2, "polling leaves lookup samples alone")
	assert.Len(t, c.Samples(cache.LayerMemory, MetricUtilization, 0), 1)
}
