package cache

import (
	"regexp"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// EntryStore fixed-capacity memory tier with LRU eviction, per-entry TTL and
// a tag index. The internal mutex covers recency bookkeeping; the coordinator
// serializes writes against invalidations with its own lock.
//
// The EvictionObserver runs under the store mutex and must not call back into the store.
type EntryStore struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *Entry]
	tags     *TagIndex
	capacity int
	observer EvictionObserver
	now      func() time.Time
}

// NewEntryStore creates a store holding at most capacity entries
func NewEntryStore(capacity int, observer EvictionObserver) *EntryStore {
	if capacity <= 0 {
		capacity = DefaultConfig().MaxEntries
	}
	// The store evicts by hand before Add so the LRU never overflows on its own.
	lru, _ := simplelru.NewLRU[string, *Entry](capacity, nil)
	return &EntryStore{
		lru:      lru,
		tags:     NewTagIndex(),
		capacity: capacity,
		observer: observer,
		now:      time.Now,
	}
}

// Get returns a copy of the live entry and marks it most recently used.
// An expired entry is removed and reported as an expiration.
func (s *EntryStore) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Peek(key)
	if !ok {
		return nil, false
	}
	now := s.now()
	if e.Expired(now) {
		s.removeLocked(key, e)
		s.notify(e, RemovedExpired)
		return nil, false
	}
	s.lru.Get(key)
	e.AccessCount++
	e.LastAccessedAt = now
	return e.clone(), true
}

// Peek returns a copy of the live entry without touching recency or counters
func (s *EntryStore) Peek(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Peek(key)
	if !ok || e.Expired(s.now()) {
		return nil, false
	}
	return e.clone(), true
}

// Set inserts or overwrites key. ttl <= 0 means no expiry.
func (s *EntryStore) Set(key string, value []byte, ttl time.Duration, tags []string) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.put(key, value, expiresAt, tags, 0)
}

func (s *EntryStore) put(key string, value []byte, expiresAt time.Time, tags []string, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := &Entry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		Tags:           normalizeTags(tags),
		LastAccessedAt: now,
		version:        version,
	}

	if old, ok := s.lru.Peek(key); ok {
		s.tags.Remove(key, old.Tags)
	} else if s.lru.Len() >= s.capacity {
		if k, victim, ok := s.lru.RemoveOldest(); ok {
			s.tags.Remove(k, victim.Tags)
			s.notify(victim, RemovedEvicted)
		}
	}
	s.lru.Add(key, e)
	s.tags.Add(key, e.Tags)
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *EntryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Peek(key)
	if !ok {
		return false
	}
	s.removeLocked(key, e)
	return true
}

// DeleteByTag removes every entry carrying tag and returns the count
func (s *EntryStore) DeleteByTag(tag string) int {
	return len(s.removeTag(tag, 0))
}

// DeleteMatching removes every key matching re and returns the count
func (s *EntryStore) DeleteMatching(re *regexp.Regexp) int {
	return len(s.removeMatching(re))
}

// removeTag removes entries under tag. A non-zero before limits removal to
// entries written earlier than that version.
func (s *EntryStore) removeTag(tag string, before uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, key := range s.tags.Keys(tag) {
		e, ok := s.lru.Peek(key)
		if !ok {
			continue
		}
		if before > 0 && e.version >= before {
			continue
		}
		s.removeLocked(key, e)
		removed = append(removed, key)
	}
	return removed
}

func (s *EntryStore) removeMatching(re *regexp.Regexp) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, key := range s.lru.Keys() {
		if !re.MatchString(key) {
			continue
		}
		if e, ok := s.lru.Peek(key); ok {
			s.removeLocked(key, e)
			removed = append(removed, key)
		}
	}
	return removed
}

// SweepExpired removes every entry expired at now
func (s *EntryStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, key := range s.lru.Keys() {
		e, ok := s.lru.Peek(key)
		if !ok || !e.Expired(now) {
			continue
		}
		s.removeLocked(key, e)
		s.notify(e, RemovedExpired)
		n++
	}
	return n
}

// Keys returns live and not yet swept keys, least recently used first
func (s *EntryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Keys()
}

// KeysByTag returns the keys indexed under tag
func (s *EntryStore) KeysByTag(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags.Keys(tag)
}

// Tags returns every indexed tag
func (s *EntryStore) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags.Tags()
}

func (s *EntryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *EntryStore) Capacity() int {
	return s.capacity
}

func (s *EntryStore) removeLocked(key string, e *Entry) {
	s.lru.Remove(key)
	s.tags.Remove(key, e.Tags)
}

func (s *EntryStore) notify(e *Entry, reason RemovalReason) {
	if s.observer != nil {
		s.observer(e.clone(), reason)
	}
}

// normalizeTags drops empty and duplicate tags, keeping first-seen order
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
