package cache

import "regexp"

// Checkpoint is a position in the coordinator's write/invalidation order.
// A value computed after taking a checkpoint may only be stored if no
// invalidation covering it happened since.
type Checkpoint uint64

type fenceRecord struct {
	seq     uint64
	keys    []string
	tags    []string
	pattern *regexp.Regexp

	// settled marks the end of a durable purge. Reads honour it; writes do
	// not, since their own race check already covers the purge start.
	settled bool
}

func (r *fenceRecord) covers(key string, tags []string) bool {
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	for _, t := range r.tags {
		for _, et := range tags {
			if t == et {
				return true
			}
		}
	}
	return r.pattern != nil && r.pattern.MatchString(key)
}

// fenceLog remembers the most recent invalidations in a ring. Once a record
// falls off, writes older than it are rejected outright.
type fenceLog struct {
	ring    []fenceRecord
	next    int
	full    bool
	dropped uint64 // highest seq that fell off the ring
}

func newFenceLog(size int) *fenceLog {
	if size <= 0 {
		size = DefaultConfig().FenceLogSize
	}
	return &fenceLog{ring: make([]fenceRecord, size)}
}

func (f *fenceLog) append(r fenceRecord) {
	if f.full {
		f.dropped = f.ring[f.next].seq
	}
	f.ring[f.next] = r
	f.next++
	if f.next == len(f.ring) {
		f.next = 0
		f.full = true
	}
}

// covers reports whether an invalidation after since touches key or tags
func (f *fenceLog) covers(since uint64, key string, tags []string) bool {
	return f.match(since, key, tags, false)
}

// coversRead is covers including settled purges
func (f *fenceLog) coversRead(since uint64, key string, tags []string) bool {
	return f.match(since, key, tags, true)
}

func (f *fenceLog) match(since uint64, key string, tags []string, settled bool) bool {
	if f.dropped > since {
		return true
	}
	n := f.next
	if f.full {
		n = len(f.ring)
	}
	for i := 0; i < n; i++ {
		r := &f.ring[i]
		if r.settled && !settled {
			continue
		}
		if r.seq > since && r.covers(key, tags) {
			return true
		}
	}
	return false
}
