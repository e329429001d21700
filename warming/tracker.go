package warming

import (
	"sort"
	"sync"
	"time"
)

// HotKey a key ranked by accesses in the tracker window
type HotKey struct {
	Key         string    `json:"key"`
	Count       int       `json:"count"`
	LastAccess  time.Time `json:"last_access"`
	PredictedAt time.Time `json:"predicted_at,omitempty"`
}

// PatternTracker records key accesses in a sliding window. It implements
// cache.AccessRecorder.
type PatternTracker struct {
	mu         sync.Mutex
	window     time.Duration
	maxHistory int
	accesses   map[string][]time.Time // oldest first
	now        func() time.Time
}

// NewPatternTracker creates a tracker keeping at most maxHistory accesses
// per key within window
func NewPatternTracker(window time.Duration, maxHistory int) *PatternTracker {
	if window <= 0 {
		window = DefaultConfig().TrackerWindow
	}
	if maxHistory < 2 {
		maxHistory = DefaultConfig().TrackerHistory
	}
	return &PatternTracker{
		window:     window,
		maxHistory: maxHistory,
		accesses:   make(map[string][]time.Time),
		now:        time.Now,
	}
}

// RecordAccess appends an access and trims the key's history
func (p *PatternTracker) RecordAccess(key string, at time.Time) {
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	h := append(p.accesses[key], at)
	// out-of-order timestamps are rare; keep the slice sorted anyway
	if n := len(h); n > 1 && h[n-1].Before(h[n-2]) {
		sort.Slice(h, func(i, j int) bool { return h[i].Before(h[j]) })
	}
	h = trimBefore(h, at.Add(-p.window))
	if len(h) > p.maxHistory {
		h = h[len(h)-p.maxHistory:]
	}
	p.accesses[key] = h
}

// GetHotKeys ranks keys by accesses within the window, most first
func (p *PatternTracker) GetHotKeys(topN int) []HotKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	from := p.now().Add(-p.window)
	out := make([]HotKey, 0, len(p.accesses))
	for key, h := range p.accesses {
		recent := trimBefore(h, from)
		if len(recent) == 0 {
			continue
		}
		hk := HotKey{Key: key, Count: len(recent), LastAccess: recent[len(recent)-1]}
		if next, ok := predict(h); ok {
			hk.PredictedAt = next
		}
		out = append(out, hk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// PredictNextAccess is the last access plus the mean interval between
// recorded accesses. It needs at least two accesses.
func (p *PatternTracker) PredictNextAccess(key string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return predict(p.accesses[key])
}

// Frequency accesses per hour within the window
func (p *PatternTracker) Frequency(key string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(trimBefore(p.accesses[key], p.now().Add(-p.window)))
	return float64(n) / p.window.Hours()
}

// Prune drops keys with no access inside the window and returns how many
func (p *PatternTracker) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	from := p.now().Add(-p.window)
	var n int
	for key, h := range p.accesses {
		h = trimBefore(h, from)
		if len(h) == 0 {
			delete(p.accesses, key)
			n++
			continue
		}
		p.accesses[key] = h
	}
	return n
}

// Len number of tracked keys
func (p *PatternTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accesses)
}

func predict(h []time.Time) (time.Time, bool) {
	if len(h) < 2 {
		return time.Time{}, false
	}
	span := h[len(h)-1].Sub(h[0])
	mean := span / time.Duration(len(h)-1)
	return h[len(h)-1].Add(mean), true
}

// trimBefore returns the suffix of sorted h at or after from
func trimBefore(h []time.Time, from time.Time) []time.Time {
	i := sort.Search(len(h), func(i int) bool { return !h[i].Before(from) })
	return h[i:]
}
