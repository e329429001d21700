package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/validator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricHitRateDrop names degradation alerts; it is not a sampled series
const MetricHitRateDrop MetricType = "hit_rate_drop"

// StatsSource provides per-layer counters, normally the cache coordinator
type StatsSource interface {
	LayerStats() []cache.LayerStats
}

// Degradation result of DetectPerformanceDegradation
type Degradation struct {
	Layer    string  `json:"layer"`
	Degraded bool    `json:"degraded"`
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Drop     float64 `json:"drop"`
	Samples  int     `json:"samples"`
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithLogger sets the analyzer logger
func WithLogger(log *logger.CtxZapLogger) AnalyzerOption {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// WithAlertHandler registers a callback for new alerts
func WithAlertHandler(h AlertHandler) AnalyzerOption {
	return func(a *Analyzer) {
		if h != nil {
			a.handlers = append(a.handlers, h)
		}
	}
}

// WithGetSampling tells the analyzer that a GetSampler feeds the hit-rate
// series, so PollLayers leaves it alone
func WithGetSampling() AnalyzerOption {
	return func(a *Analyzer) {
		a.getSampled = true
	}
}

// Analyzer 性能分析器
type Analyzer struct {
	cfg        Config
	collector  *Collector
	source     StatsSource
	log        *logger.CtxZapLogger
	handlers   []AlertHandler
	getSampled bool

	mu     sync.Mutex
	active map[string]*Alert // alertKey -> alert
	byID   map[string]string // id -> alertKey
	last   map[string]cache.LayerStats
}

// NewAnalyzer creates an analyzer reading source and sampling into collector
func NewAnalyzer(cfg Config, collector *Collector, source StatsSource, opts ...AnalyzerOption) (*Analyzer, error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return nil, err
	}
	if collector == nil {
		collector = NewCollector(cfg.RingCapacity, cfg.TrendSensitivity)
	}
	a := &Analyzer{
		cfg:       cfg,
		collector: collector,
		source:    source,
		log:       logger.NewNopLogger(),
		active:    make(map[string]*Alert),
		byID:      make(map[string]string),
		last:      make(map[string]cache.LayerStats),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Collector returns the sample collector
func (a *Analyzer) Collector() *Collector {
	return a.collector
}

// PollLayers samples every layer: utilization, and the hit rate, evictions
// and expirations since the previous poll. The hit rate is skipped under
// WithGetSampling.
func (a *Analyzer) PollLayers(ctx context.Context) {
	if a.source == nil {
		return
	}
	for _, s := range a.source.LayerStats() {
		a.mu.Lock()
		prev, seen := a.last[s.Layer]
		a.last[s.Layer] = s
		a.mu.Unlock()

		if s.Capacity > 0 {
			a.collector.RecordMetric(s.Layer, MetricUtilization, s.Utilization())
		}
		if !seen {
			prev = cache.LayerStats{}
		}
		hits := s.Hits - prev.Hits
		misses := s.Misses - prev.Misses
		if hits < 0 || misses < 0 {
			// counters restarted
			hits, misses = s.Hits, s.Misses
		}
		if !a.getSampled && hits+misses > 0 {
			a.collector.RecordMetric(s.Layer, MetricHitRate, float64(hits)/float64(hits+misses))
		}
		a.collector.RecordMetric(s.Layer, MetricEvictions, float64(nonNegative(s.Evictions-prev.Evictions)))
		a.collector.RecordMetric(s.Layer, MetricExpirations, float64(nonNegative(s.Expirations-prev.Expirations)))
	}
	a.log.DebugCtx(ctx, "layer stats sampled")
}

// DetectPerformanceDegradation compares the current hit rate against the
// baseline. When every sample falls within the recent window, the halves
// of the series stand in for current and baseline.
func (a *Analyzer) DetectPerformanceDegradation(layer string) Degradation {
	d := Degradation{Layer: layer}
	samples := a.collector.Samples(layer, MetricHitRate, a.cfg.BaselineWindow)
	d.Samples = len(samples)
	if len(samples) < 2 {
		return d
	}

	recentFrom := a.collector.now().Add(-a.cfg.RecentWindow)
	if !samples[0].Timestamp.Before(recentFrom) {
		first, second := halves(samples)
		d.Baseline, d.Current = mean(first), mean(second)
	} else {
		var recent []MetricSample
		for _, s := range samples {
			if !s.Timestamp.Before(recentFrom) {
				recent = append(recent, s)
			}
		}
		if len(recent) == 0 {
			return d
		}
		d.Baseline, d.Current = mean(samples), mean(recent)
	}
	d.Drop = d.Baseline - d.Current
	d.Degraded = d.Drop > a.cfg.DegradationThreshold
	return d
}

// CheckAlerts evaluates the thresholds for every sampled layer and returns
// the alerts raised by this call. A (layer, metric) with an active alert is
// not raised again until acknowledged.
func (a *Analyzer) CheckAlerts(ctx context.Context) []Alert {
	th := a.cfg.Alerts
	recentMinutes := int(a.cfg.RecentWindow / time.Minute)
	if recentMinutes < 1 {
		recentMinutes = 1
	}

	var raised []Alert
	for _, layer := range a.collector.Layers() {
		if samples := a.collector.Samples(layer, MetricHitRate, a.cfg.RecentWindow); len(samples) > 0 {
			hr := a.collector.CalculateAverage(layer, MetricHitRate, recentMinutes)
			if hr < th.HitRateWarning {
				raised = a.raise(raised, SeverityWarning, layer, MetricHitRate, hr, th.HitRateWarning,
					fmt.Sprintf("%s hit rate %.1f%% is below %.1f%%", layer, hr*100, th.HitRateWarning*100))
			}
		}
		if s, ok := a.collector.Latest(layer, MetricUtilization); ok && s.Value > th.UtilizationCritical {
			raised = a.raise(raised, SeverityCritical, layer, MetricUtilization, s.Value, th.UtilizationCritical,
				fmt.Sprintf("%s utilization %.1f%% is above %.1f%%", layer, s.Value*100, th.UtilizationCritical*100))
		}
		if rate := a.collector.Rate(layer, MetricEvictions, a.cfg.RecentWindow); rate > th.EvictionRateWarning {
			raised = a.raise(raised, SeverityWarning, layer, MetricEvictions, rate, th.EvictionRateWarning,
				fmt.Sprintf("%s evicts %.0f entries/min, above %.0f", layer, rate, th.EvictionRateWarning))
		}
		if d := a.DetectPerformanceDegradation(layer); d.Degraded {
			raised = a.raise(raised, SeverityWarning, layer, MetricHitRateDrop, d.Drop, a.cfg.DegradationThreshold,
				fmt.Sprintf("%s hit rate dropped %.1f points (%.1f%% -> %.1f%%)", layer, d.Drop*100, d.Baseline*100, d.Current*100))
		}
	}

	for _, al := range raised {
		a.log.WarnCtx(ctx, "cache alert raised",
			zap.String("id", al.ID),
			zap.String("severity", string(al.Severity)),
			zap.String("layer", al.Layer),
			zap.String("metric", string(al.Metric)),
			zap.Float64("value", al.Value),
		)
		for _, h := range a.handlers {
			h(al)
		}
	}
	return raised
}

func (a *Analyzer) raise(raised []Alert, sev Severity, layer string, metric MetricType, value, threshold float64, msg string) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := alertKey(layer, metric)
	if _, ok := a.active[key]; ok {
		return raised
	}
	al := &Alert{
		ID:        uuid.NewString(),
		Severity:  sev,
		Layer:     layer,
		Metric:    metric,
		Message:   msg,
		Value:     value,
		Threshold: threshold,
		RaisedAt:  a.collector.now(),
	}
	a.active[key] = al
	a.byID[al.ID] = key
	return append(raised, *al)
}

// Acknowledge clears an active alert
func (a *Analyzer) Acknowledge(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key, ok := a.byID[id]
	if !ok {
		return ErrAlertNotFound.WithMsgf("告警不存在: %s", id)
	}
	delete(a.byID, id)
	delete(a.active, key)
	return nil
}

// ActiveAlerts returns unacknowledged alerts, oldest first
func (a *Analyzer) ActiveAlerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Alert, 0, len(a.active))
	for _, al := range a.active {
		out = append(out, *al)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].RaisedAt.Before(out[j].RaisedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
