package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics implements component.MetricsProvider and cache.Observer.
// Counters are fed by the coordinator hooks; gauges read the stats source
// at collection time.
type OTelMetrics struct {
	enabled    bool
	source     StatsSource
	analyzer   *Analyzer
	registered bool
	mu         sync.RWMutex

	hitsTotal        metric.Int64Counter
	missesTotal      metric.Int64Counter
	evictionsTotal   metric.Int64Counter
	expirationsTotal metric.Int64Counter
	utilization      metric.Float64ObservableGauge
	entries          metric.Int64ObservableGauge
	activeAlerts     metric.Int64ObservableGauge
}

// NewOTelMetrics creates the exporter; analyzer may be nil
func NewOTelMetrics(enabled bool, source StatsSource, analyzer *Analyzer) *OTelMetrics {
	return &OTelMetrics{enabled: enabled, source: source, analyzer: analyzer}
}

// MetricsName returns the metrics group name
func (m *OTelMetrics) MetricsName() string {
	return "cache"
}

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *OTelMetrics) IsMetricsEnabled() bool {
	return m.enabled
}

// RegisterMetrics registers all cache metrics with the provided Meter
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered || !m.enabled {
		return nil
	}

	var err error
	m.hitsTotal, err = meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	m.missesTotal, err = meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	m.evictionsTotal, err = meter.Int64Counter(
		"cache_evictions_total",
		metric.WithDescription("Entries evicted for capacity"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	m.expirationsTotal, err = meter.Int64Counter(
		"cache_expirations_total",
		metric.WithDescription("Entries removed after their TTL"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	m.utilization, err = meter.Float64ObservableGauge(
		"cache_utilization_ratio",
		metric.WithDescription("Layer size divided by capacity"),
		metric.WithFloat64Callback(m.collectUtilization),
	)
	if err != nil {
		return err
	}

	m.entries, err = meter.Int64ObservableGauge(
		"cache_entries",
		metric.WithDescription("Entries currently held by the layer"),
		metric.WithInt64Callback(m.collectEntries),
	)
	if err != nil {
		return err
	}

	if m.analyzer != nil {
		m.activeAlerts, err = meter.Int64ObservableGauge(
			"cache_active_alerts",
			metric.WithDescription("Unacknowledged cache alerts"),
			metric.WithInt64Callback(m.collectAlerts),
		)
		if err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

func (m *OTelMetrics) collectUtilization(_ context.Context, o metric.Float64Observer) error {
	if m.source == nil {
		return nil
	}
	for _, s := range m.source.LayerStats() {
		if s.Capacity > 0 {
			o.Observe(s.Utilization(), metric.WithAttributes(attribute.String("layer", s.Layer)))
		}
	}
	return nil
}

func (m *OTelMetrics) collectEntries(_ context.Context, o metric.Int64Observer) error {
	if m.source == nil {
		return nil
	}
	for _, s := range m.source.LayerStats() {
		o.Observe(int64(s.Size), metric.WithAttributes(attribute.String("layer", s.Layer)))
	}
	return nil
}

func (m *OTelMetrics) collectAlerts(_ context.Context, o metric.Int64Observer) error {
	o.Observe(int64(len(m.analyzer.ActiveAlerts())))
	return nil
}

// ObserveGet records a lookup on layer
func (m *OTelMetrics) ObserveGet(layer string, hit bool) {
	if !m.ready() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("layer", layer))
	if hit {
		m.hitsTotal.Add(context.Background(), 1, attrs)
		return
	}
	m.missesTotal.Add(context.Background(), 1, attrs)
}

// ObserveEviction records a capacity eviction
func (m *OTelMetrics) ObserveEviction(layer string) {
	if !m.ready() {
		return
	}
	m.evictionsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// ObserveExpiration records a TTL removal
func (m *OTelMetrics) ObserveExpiration(layer string) {
	if !m.ready() {
		return
	}
	m.expirationsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("layer", layer)))
}

func (m *OTelMetrics) ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled && m.registered
}
