package metrics

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectOTel(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumByLayer(t *testing.T, agg metricdata.Aggregation) map[string]int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		layer, _ := dp.Attributes.Value("layer")
		out[layer.AsString()] = dp.Value
	}
	return out
}

func TestOTelMetrics(t *testing.T) {
	src := &stubSource{}
	src.set(
		cache.LayerStats{Layer: "memory", Size: 30, Capacity: 120},
		cache.LayerStats{Layer: "durable", Size: 7},
	)
	a, _ := newTestAnalyzer(t, src)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m := NewOTelMetrics(true, src, a)
	assert.Equal(t, "cache", m.MetricsName())

	// nothing is recorded before registration
	m.ObserveGet("memory", true)

	require.NoError(t, m.RegisterMetrics(provider.Meter("cache")))
	require.NoError(t, m.RegisterMetrics(provider.Meter("cache")), "second registration is a no-op")

	m.ObserveGet("memory", true)
	m.ObserveGet("memory", true)
	m.ObserveGet("memory", false)
	m.ObserveGet("durable", false)
	m.ObserveEviction("memory")
	m.ObserveExpiration("memory")
	m.ObserveExpiration("memory")

	got := collectOTel(t, reader)
	assert.Equal(t, map[string]int64{"memory": 2}, sumByLayer(t, got["cache_hits_total"]))
	assert.Equal(t, map[string]int64{"memory": 1, "durable": 1}, sumByLayer(t, got["cache_misses_total"]))
	assert.Equal(t, map[string]int64{"memory": 1}, sumByLayer(t, got["cache_evictions_total"]))
	assert.Equal(t, map[string]int64{"memory": 2}, sumByLayer(t, got["cache_expirations_total"]))

	util, ok := got["cache_utilization_ratio"].(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, util.DataPoints, 1, "only layers with a capacity")
	assert.InDelta(t, 0.25, util.DataPoints[0].Value, 1e-9)

	entries, ok := got["cache_entries"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Len(t, entries.DataPoints, 2)

	alerts, ok := got["cache_active_alerts"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), alerts.DataPoints[0].Value)
}

func TestOTelMetrics_Disabled(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m := NewOTelMetrics(false, nil, nil)
	assert.False(t, m.IsMetricsEnabled())
	require.NoError(t, m.RegisterMetrics(provider.Meter("cache")))
	m.ObserveGet("memory", true)

	got := collectOTel(t, reader)
	_, ok := got["cache_hits_total"]
	assert.False(t, ok)
	_, ok = got["cache_active_alerts"]
	assert.False(t, ok)
}

func gathered(t *testing.T, families []*dto.MetricFamily, name, label string) map[string]float64 {
	t.Helper()
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			var key string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label {
					key = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestPromCollector(t *testing.T) {
	src := &stubSource{}
	src.set(
		cache.LayerStats{Layer: "memory", Available: true, Size: 95, Capacity: 100, Hits: 50, Misses: 50, Evictions: 600},
		cache.LayerStats{Layer: "durable", Available: false, Hits: 3, Errors: 2},
	)
	a, _ := newTestAnalyzer(t, src)
	a.PollLayers(context.Background())
	a.CheckAlerts(context.Background())

	reg := NewRegistry(PrometheusConfig{Enabled: true, Namespace: "test"}, src, a)
	families, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"memory": 50, "durable": 3}, gathered(t, families, "test_cache_hits_total", "layer"))
	assert.Equal(t, map[string]float64{"memory": 1, "durable": 0}, gathered(t, families, "test_cache_available", "layer"))
	assert.InDelta(t, 0.95, gathered(t, families, "test_cache_utilization_ratio", "layer")["memory"], 1e-9)
	assert.Equal(t, 2.0, gathered(t, families, "test_cache_errors_total", "layer")["durable"])

	alerts := gathered(t, families, "test_cache_active_alerts", "severity")
	assert.Equal(t, 1.0, alerts["critical"])
	assert.Equal(t, 2.0, alerts["warning"])
	assert.Equal(t, 0.0, alerts["info"])

	// 9 series per layer plus one per severity
	assert.Equal(t, 21, testutil.CollectAndCount(NewPromCollector("test", src, a)))
}
