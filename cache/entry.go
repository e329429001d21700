package cache

import (
	"context"
	"time"
)

// Layer names used in stats and metric samples
const (
	LayerMemory  = "memory"
	LayerDurable = "durable"
)

// Entry a cached value in the memory tier
type Entry struct {
	Key            string
	Value          []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time // zero means no expiry
	Tags           []string
	AccessCount    int64
	LastAccessedAt time.Time

	// version orders the write against invalidations and stale marks
	version uint64
}

// Expired reports whether the entry is past its expiry at now
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// HasTag reports whether the entry carries tag
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

// ComputeFunc produces the value for a missing key
type ComputeFunc func(ctx context.Context) ([]byte, error)

// RemovalReason why an entry left the memory tier without being invalidated
type RemovalReason int

const (
	RemovedEvicted RemovalReason = iota + 1
	RemovedExpired
)

func (r RemovalReason) String() string {
	switch r {
	case RemovedEvicted:
		return "evicted"
	case RemovedExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// EvictionObserver is told about every capacity eviction and expiry
type EvictionObserver func(e *Entry, reason RemovalReason)

// Observer receives per-layer events from the coordinator; the metrics
// package adapts it onto its collector and exporters.
type Observer interface {
	ObserveGet(layer string, hit bool)
	ObserveEviction(layer string)
	ObserveExpiration(layer string)
}

// AccessRecorder is told about every successful read (warming tracker)
type AccessRecorder interface {
	RecordAccess(key string, at time.Time)
}

// DependencyRecorder records that dependent was derived from source
type DependencyRecorder interface {
	AddDependency(dependent, source string)
}

// SourceTagger is implemented by dependency recorders that index the tags of
// source keys. It is told about every write and every new dependency source
// found in memory.
type SourceTagger interface {
	TagSource(key string, tags []string)
}

type nopObserver struct{}

func (nopObserver) ObserveGet(string, bool) {}
func (nopObserver) ObserveEviction(string) {}
func (nopObserver) ObserveExpiration(string) {}

// Observers fans every event out to each observer in order
type Observers []Observer

func (obs Observers) ObserveGet(layer string, hit bool) {
	for _, o := range obs {
		if o != nil {
			o.ObserveGet(layer, hit)
		}
	}
}

func (obs Observers) ObserveEviction(layer string) {
	for _, o := range obs {
		if o != nil {
			o.ObserveEviction(layer)
		}
	}
}

func (obs Observers) ObserveExpiration(layer string) {
	for _, o := range obs {
		if o != nil {
			o.ObserveExpiration(layer)
		}
	}
}
