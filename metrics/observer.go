package metrics

// GetSampler is a cache.Observer recording a hit-rate sample of 1 or 0 for
// every lookup on the layer that answered it. Evictions and expirations are
// left to PollLayers, which samples them as per-poll counts.
type GetSampler struct {
	collector *Collector
}

// NewGetSampler samples lookups into collector
func NewGetSampler(collector *Collector) *GetSampler {
	return &GetSampler{collector: collector}
}

// ObserveGet records 1 for a hit and 0 for a miss
func (s *GetSampler) ObserveGet(layer string, hit bool) {
	v := 0.0
	if hit {
		v = 1
	}
	s.collector.RecordMetric(layer, MetricHitRate, v)
}

func (s *GetSampler) ObserveEviction(string) {}

func (s *GetSampler) ObserveExpiration(string) {}
