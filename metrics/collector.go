// Package metrics samples cache layer statistics into per-series rings and
// analyses them: averages, trends, degradation, alerts and the
// comprehensive report. Exporters publish the same statistics to
// OpenTelemetry and Prometheus.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricHitRate     MetricType = "hit_rate"
	MetricUtilization MetricType = "utilization"
	MetricEvictions   MetricType = "evictions"
	MetricExpirations MetricType = "expirations"
)

// higherIsBetter reports the metric's polarity
func (t MetricType) higherIsBetter() bool {
	return t == MetricHitRate
}

// MetricSample one recorded value
type MetricSample struct {
	Layer     string     `json:"layer"`
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}

// Trend direction of a metric over a window
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendStable    Trend = "stable"
)

type seriesKey struct {
	layer string
	typ   MetricType
}

// ring is a fixed-capacity sample buffer; push overwrites the oldest
type ring struct {
	buf  []MetricSample
	head int // next write position
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]MetricSample, capacity)}
}

func (r *ring) push(s MetricSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// since returns samples at or after from, oldest first
func (r *ring) since(from time.Time) []MetricSample {
	out := make([]MetricSample, 0, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		s := r.buf[(start+i)%len(r.buf)]
		if !s.Timestamp.Before(from) {
			out = append(out, s)
		}
	}
	return out
}

// Collector 指标采集器
type Collector struct {
	mu          sync.RWMutex
	capacity    int
	sensitivity float64
	series      map[seriesKey]*ring
	now         func() time.Time
}

// NewCollector creates a collector keeping capacity samples per series and
// treating relative changes within sensitivity as stable
func NewCollector(capacity int, sensitivity float64) *Collector {
	if capacity < 2 {
		capacity = DefaultConfig().RingCapacity
	}
	if sensitivity <= 0 {
		sensitivity = DefaultConfig().TrendSensitivity
	}
	return &Collector{
		capacity:    capacity,
		sensitivity: sensitivity,
		series:      make(map[seriesKey]*ring),
		now:         time.Now,
	}
}

// RecordMetric appends a sample stamped now
func (c *Collector) RecordMetric(layer string, typ MetricType, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := seriesKey{layer, typ}
	r, ok := c.series[k]
	if !ok {
		r = newRing(c.capacity)
		c.series[k] = r
	}
	r.push(MetricSample{Layer: layer, Type: typ, Value: value, Timestamp: c.now()})
}

// Samples returns the samples of the last window, oldest first; window <= 0
// returns everything retained
func (c *Collector) Samples(layer string, typ MetricType, window time.Duration) []MetricSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.series[seriesKey{layer, typ}]
	if !ok {
		return nil
	}
	var from time.Time
	if window > 0 {
		from = c.now().Add(-window)
	}
	return r.since(from)
}

// Latest returns the most recent sample
func (c *Collector) Latest(layer string, typ MetricType) (MetricSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.series[seriesKey{layer, typ}]
	if !ok || r.size == 0 {
		return MetricSample{}, false
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)], true
}

// CalculateAverage mean over the last windowMinutes; 0 without samples
func (c *Collector) CalculateAverage(layer string, typ MetricType, windowMinutes int) float64 {
	return mean(c.Samples(layer, typ, minutes(windowMinutes)))
}

// CalculateTrend compares the first and second half of the window
func (c *Collector) CalculateTrend(layer string, typ MetricType, windowMinutes int) Trend {
	samples := c.Samples(layer, typ, minutes(windowMinutes))
	if len(samples) < 2 {
		return TrendStable
	}
	first, second := halves(samples)
	return classify(typ, mean(first), mean(second), c.sensitivity)
}

// Rate is the per-minute sum of the samples in window
func (c *Collector) Rate(layer string, typ MetricType, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples(layer, typ, window) {
		sum += s.Value
	}
	return sum / window.Minutes()
}

// Layers returns every layer with at least one series, sorted
func (c *Collector) Layers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range c.series {
		seen[k.layer] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func classify(typ MetricType, before, after, sensitivity float64) Trend {
	var change float64
	switch {
	case before != 0:
		change = (after - before) / abs(before)
	case after > 0:
		change = 1
	case after < 0:
		change = -1
	}
	if abs(change) <= sensitivity {
		return TrendStable
	}
	rising := change > 0
	if rising == typ.higherIsBetter() {
		return TrendImproving
	}
	return TrendDegrading
}

func halves(samples []MetricSample) (first, second []MetricSample) {
	mid := len(samples) / 2
	return samples[:mid], samples[mid:]
}

func mean(samples []MetricSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
