package cache

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(capacity int) (*EntryStore, *fakeClock, *[]string) {
	clock := newFakeClock()
	var removed []string
	s := NewEntryStore(capacity, func(e *Entry, reason RemovalReason) {
		removed = append(removed, reason.String()+":"+e.Key)
	})
	s.now = clock.Now
	return s, clock, &removed
}

func TestEntryStore_CapacityEviction(t *testing.T) {
	s, _, removed := newTestStore(2)

	s.Set("a", []byte("1"), 0, nil)
	s.Set("b", []byte("2"), 0, nil)
	s.Set("c", []byte("3"), 0, nil)

	_, ok := s.Get("a")
	assert.False(t, ok, "a should be evicted")

	b, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, []byte("2"), b.Value)

	c, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), c.Value)

	assert.Equal(t, []string{"evicted:a"}, *removed)
	assert.Equal(t, 2, s.Len())
}

func TestEntryStore_EvictsLeastRecentlyAccessed(t *testing.T) {
	s, _, removed := newTestStore(3)

	s.Set("a", []byte("1"), 0, nil)
	s.Set("b", []byte("2"), 0, nil)
	s.Set("c", []byte("3"), 0, nil)

	// touch a so b becomes the oldest
	_, ok := s.Get("a")
	require.True(t, ok)

	s.Set("d", []byte("4"), 0, nil)

	_, ok = s.Peek("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"evicted:b"}, *removed)
	assert.Equal(t, []string{"c", "a", "d"}, s.Keys())
}

func TestEntryStore_NeverExceedsCapacity(t *testing.T) {
	s, _, _ := newTestStore(5)
	for i := 0; i < 100; i++ {
		s.Set(fmt.Sprintf("k%d", i), []byte("v"), 0, []string{"t"})
		assert.LessOrEqual(t, s.Len(), 5)
	}
	assert.Equal(t, 5, len(s.KeysByTag("t")))
	assert.Equal(t, []string{"k95", "k96", "k97", "k98", "k99"}, s.Keys())
}

func TestEntryStore_TTL(t *testing.T) {
	t.Run("expired entry is a miss and counted", func(t *testing.T) {
		s, clock, removed := newTestStore(10)
		s.Set("a", []byte("1"), time.Minute, []string{"x"})

		clock.Advance(30 * time.Second)
		_, ok := s.Get("a")
		assert.True(t, ok)

		clock.Advance(31 * time.Second)
		_, ok = s.Get("a")
		assert.False(t, ok)
		assert.Equal(t, []string{"expired:a"}, *removed)
		assert.Empty(t, s.KeysByTag("x"))
	})

	t.Run("non-positive ttl never expires", func(t *testing.T) {
		s, clock, _ := newTestStore(10)
		s.Set("a", []byte("1"), 0, nil)
		s.Set("b", []byte("2"), -time.Second, nil)

		clock.Advance(24 * time.Hour)
		_, ok := s.Get("a")
		assert.True(t, ok)
		_, ok = s.Get("b")
		assert.True(t, ok)
	})

	t.Run("sweep removes expired entries", func(t *testing.T) {
		s, clock, removed := newTestStore(10)
		s.Set("a", []byte("1"), time.Second, nil)
		s.Set("b", []byte("2"), time.Hour, nil)

		clock.Advance(time.Minute)
		assert.Equal(t, 1, s.SweepExpired(clock.Now()))
		assert.Equal(t, []string{"b"}, s.Keys())
		assert.Equal(t, []string{"expired:a"}, *removed)
	})
}

func TestEntryStore_AccessTracking(t *testing.T) {
	s, clock, _ := newTestStore(10)
	s.Set("a", []byte("1"), 0, nil)

	clock.Advance(time.Second)
	_, _ = s.Get("a")
	clock.Advance(time.Second)
	e, ok := s.Get("a")
	require.True(t, ok)

	assert.Equal(t, int64(2), e.AccessCount)
	assert.Equal(t, clock.Now(), e.LastAccessedAt)

	peeked, ok := s.Peek("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), peeked.AccessCount)
}

func TestEntryStore_Tags(t *testing.T) {
	t.Run("overwrite swaps tags", func(t *testing.T) {
		s, _, _ := newTestStore(10)
		s.Set("a", []byte("1"), 0, []string{"old", "shared"})
		s.Set("a", []byte("2"), 0, []string{"new", "shared"})

		assert.Empty(t, s.KeysByTag("old"))
		assert.Equal(t, []string{"a"}, s.KeysByTag("new"))
		assert.Equal(t, []string{"a"}, s.KeysByTag("shared"))
		assert.Equal(t, []string{"new", "shared"}, s.Tags())
	})

	t.Run("delete by tag", func(t *testing.T) {
		s, _, _ := newTestStore(10)
		s.Set("a", []byte("1"), 0, []string{"user"})
		s.Set("b", []byte("2"), 0, []string{"user", "session"})
		s.Set("c", []byte("3"), 0, []string{"session"})

		assert.Equal(t, 2, s.DeleteByTag("user"))
		assert.Equal(t, 0, s.DeleteByTag("user"))
		assert.Equal(t, []string{"c"}, s.KeysByTag("session"))
		assert.Equal(t, []string{"c"}, s.Keys())
	})

	t.Run("eviction prunes tags", func(t *testing.T) {
		s, _, _ := newTestStore(1)
		s.Set("a", []byte("1"), 0, []string{"x"})
		s.Set("b", []byte("2"), 0, []string{"y"})

		assert.Empty(t, s.KeysByTag("x"))
		assert.Equal(t, []string{"y"}, s.Tags())
	})

	t.Run("duplicate and empty tags are dropped", func(t *testing.T) {
		s, _, _ := newTestStore(10)
		s.Set("a", []byte("1"), 0, []string{"x", "", "x"})

		e, ok := s.Peek("a")
		require.True(t, ok)
		assert.Equal(t, []string{"x"}, e.Tags)
	})
}

func TestEntryStore_Delete(t *testing.T) {
	s, _, removed := newTestStore(10)
	s.Set("a", []byte("1"), 0, []string{"x"})

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Empty(t, s.KeysByTag("x"))
	assert.Empty(t, *removed, "explicit deletes are not evictions")
}

func TestEntryStore_DeleteMatching(t *testing.T) {
	s, _, _ := newTestStore(10)
	s.Set("user:1", []byte("1"), 0, []string{"u"})
	s.Set("user:2", []byte("2"), 0, []string{"u"})
	s.Set("order:1", []byte("3"), 0, nil)

	assert.Equal(t, 2, s.DeleteMatching(regexp.MustCompile(`^user:`)))
	assert.Equal(t, []string{"order:1"}, s.Keys())
	assert.Empty(t, s.KeysByTag("u"))
}

func TestEntryStore_GetReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(10)
	s.Set("a", []byte("1"), 0, []string{"x"})

	e, _ := s.Get("a")
	e.Tags[0] = "mutated"

	again, _ := s.Peek("a")
	assert.Equal(t, []string{"x"}, again.Tags)
}

func TestTagIndex(t *testing.T) {
	idx := NewTagIndex()
	idx.Add("k1", []string{"a", "b"})
	idx.Add("k2", []string{"a"})

	assert.Equal(t, []string{"k1", "k2"}, idx.Keys("a"))
	assert.True(t, idx.Has("b", "k1"))
	assert.Equal(t, 2, idx.Count("a"))

	idx.Remove("k1", []string{"a", "b"})
	assert.Equal(t, []string{"k2"}, idx.Keys("a"))
	assert.False(t, idx.Has("b", "k1"))
	assert.Equal(t, []string{"a"}, idx.Tags())
}
