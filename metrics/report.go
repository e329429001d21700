package metrics

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
)

// LayerReport 单层报告
type LayerReport struct {
	Layer            string      `json:"layer"`
	Available        bool        `json:"available"`
	HitRate          float64     `json:"hit_rate"`
	Size             int         `json:"size"`
	Capacity         int         `json:"capacity"`
	Utilization      float64     `json:"utilization"`
	Evictions        int64       `json:"evictions"`
	Expirations      int64       `json:"expirations"`
	Errors           int64       `json:"errors"`
	EvictionRate     float64     `json:"eviction_rate_per_min"`
	HitRateTrend     Trend       `json:"hit_rate_trend"`
	UtilizationTrend Trend       `json:"utilization_trend"`
	Degradation      Degradation `json:"degradation"`
}

// Report 综合报告
type Report struct {
	GeneratedAt     time.Time     `json:"generated_at"`
	Layers          []LayerReport `json:"layers"`
	Alerts          []Alert       `json:"alerts"`
	Recommendations []string      `json:"recommendations"`
}

// GetComprehensiveReport summarises every layer from the stats source and
// the sampled series. It does not sample or raise alerts itself.
func (a *Analyzer) GetComprehensiveReport() Report {
	rep := Report{
		GeneratedAt:     a.collector.now(),
		Layers:          []LayerReport{},
		Alerts:          a.ActiveAlerts(),
		Recommendations: []string{},
	}

	var stats []cache.LayerStats
	if a.source != nil {
		stats = a.source.LayerStats()
	}
	trendMinutes := int(a.cfg.BaselineWindow / time.Minute)

	for _, s := range stats {
		lr := LayerReport{
			Layer:            s.Layer,
			Available:        s.Available,
			HitRate:          s.HitRate(),
			Size:             s.Size,
			Capacity:         s.Capacity,
			Utilization:      s.Utilization(),
			Evictions:        s.Evictions,
			Expirations:      s.Expirations,
			Errors:           s.Errors,
			EvictionRate:     a.collector.Rate(s.Layer, MetricEvictions, a.cfg.RecentWindow),
			HitRateTrend:     a.collector.CalculateTrend(s.Layer, MetricHitRate, trendMinutes),
			UtilizationTrend: a.collector.CalculateTrend(s.Layer, MetricUtilization, trendMinutes),
			Degradation:      a.DetectPerformanceDegradation(s.Layer),
		}
		if len(a.collector.Samples(s.Layer, MetricHitRate, a.cfg.RecentWindow)) > 0 {
			lr.HitRate = a.collector.CalculateAverage(s.Layer, MetricHitRate, int(a.cfg.RecentWindow/time.Minute))
		}
		rep.Layers = append(rep.Layers, lr)
		rep.Recommendations = append(rep.Recommendations, a.recommend(s, lr)...)
	}
	return rep
}

func (a *Analyzer) recommend(s cache.LayerStats, lr LayerReport) []string {
	th := a.cfg.Alerts
	var out []string
	evictionsHigh := lr.EvictionRate >= th.EvictionRateWarning/2

	if s.Misses > s.Hits && !evictionsHigh {
		out = append(out, fmt.Sprintf(
			"%s: misses dominate (hit rate %.1f%%) while evictions are low; increase TTL so entries live longer",
			s.Layer, lr.HitRate*100))
	}
	if evictionsHigh && lr.HitRate >= th.HitRateWarning {
		out = append(out, fmt.Sprintf(
			"%s: %.0f evictions/min with a healthy hit rate; increase capacity",
			s.Layer, lr.EvictionRate))
	}
	if lr.Degradation.Degraded {
		out = append(out, fmt.Sprintf(
			"%s: hit rate degraded from %.1f%% to %.1f%%; review recent invalidation rules and warming schedules",
			s.Layer, lr.Degradation.Baseline*100, lr.Degradation.Current*100))
	}
	if s.Errors > 0 {
		out = append(out, fmt.Sprintf(
			"%s: %d backend errors; check durable tier connectivity",
			s.Layer, s.Errors))
	}
	if !s.Available {
		out = append(out, fmt.Sprintf("%s: tier unavailable, serving from memory only", s.Layer))
	}
	return out
}
