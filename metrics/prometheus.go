package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PromCollector exposes layer stats and alerts as a prometheus.Collector.
// Values are read from the source on every scrape.
type PromCollector struct {
	source   StatsSource
	analyzer *Analyzer

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
	errors      *prometheus.Desc
	entries     *prometheus.Desc
	capacity    *prometheus.Desc
	utilization *prometheus.Desc
	available   *prometheus.Desc
	alerts      *prometheus.Desc
}

// NewPromCollector creates the collector; analyzer may be nil
func NewPromCollector(namespace string, source StatsSource, analyzer *Analyzer) *PromCollector {
	layer := []string{"layer"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, labels, nil)
	}
	return &PromCollector{
		source:      source,
		analyzer:    analyzer,
		hits:        desc("hits_total", "Total number of cache hits", layer),
		misses:      desc("misses_total", "Total number of cache misses", layer),
		evictions:   desc("evictions_total", "Entries evicted for capacity", layer),
		expirations: desc("expirations_total", "Entries removed after their TTL", layer),
		errors:      desc("errors_total", "Failed backend calls", layer),
		entries:     desc("entries", "Entries currently held by the layer", layer),
		capacity:    desc("capacity", "Maximum entries of the layer, 0 when unbounded", layer),
		utilization: desc("utilization_ratio", "Layer size divided by capacity", layer),
		available:   desc("available", "1 when the layer is serving", layer),
		alerts:      desc("active_alerts", "Unacknowledged alerts", []string{"severity"}),
	}
}

// Describe implements prometheus.Collector
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.errors
	ch <- c.entries
	ch <- c.capacity
	ch <- c.utilization
	ch <- c.available
	ch <- c.alerts
}

// Collect implements prometheus.Collector
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	if c.source != nil {
		for _, s := range c.source.LayerStats() {
			ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(s.Expirations), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, s.Utilization(), s.Layer)
			ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, boolFloat(s.Available), s.Layer)
		}
	}
	if c.analyzer != nil {
		counts := map[Severity]int{SeverityInfo: 0, SeverityWarning: 0, SeverityCritical: 0}
		for _, a := range c.analyzer.ActiveAlerts() {
			counts[a.Severity]++
		}
		for sev, n := range counts {
			ch <- prometheus.MustNewConstMetric(c.alerts, prometheus.GaugeValue, float64(n), string(sev))
		}
	}
}

// NewRegistry returns a registry with the cache collector plus the Go and
// process collectors
func NewRegistry(cfg PrometheusConfig, source StatsSource, analyzer *Analyzer) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewPromCollector(cfg.Namespace, source, analyzer),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
	)
	return registry
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
