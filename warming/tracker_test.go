package warming

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestTracker(window time.Duration, history int) (*PatternTracker, *fakeClock) {
	clock := newFakeClock()
	p := NewPatternTracker(window, history)
	p.now = clock.Now
	return p, clock
}

func TestPatternTracker_GetHotKeys(t *testing.T) {
	p, clock := newTestTracker(time.Hour, 100)

	for i := 0; i < 5; i++ {
		p.RecordAccess("user:1", clock.Now())
	}
	for i := 0; i < 3; i++ {
		p.RecordAccess("user:2", clock.Now())
	}
	p.RecordAccess("user:3", clock.Now())
	p.RecordAccess("", clock.Now())

	hot := p.GetHotKeys(2)
	require.Len(t, hot, 2)
	assert.Equal(t, "user:1", hot[0].Key)
	assert.Equal(t, 5, hot[0].Count)
	assert.Equal(t, "user:2", hot[1].Key)

	assert.Len(t, p.GetHotKeys(0), 3)

	t.Run("window slides", func(t *testing.T) {
		clock.Advance(61 * time.Minute)
		p.RecordAccess("user:3", clock.Now())

		hot := p.GetHotKeys(10)
		require.Len(t, hot, 1)
		assert.Equal(t, "user:3", hot[0].Key)
		assert.Equal(t, 1, hot[0].Count)

		assert.Equal(t, 2, p.Prune())
		assert.Equal(t, 1, p.Len())
	})
}

func TestPatternTracker_HistoryBound(t *testing.T) {
	p, clock := newTestTracker(time.Hour, 10)
	for i := 0; i < 25; i++ {
		p.RecordAccess("k", clock.Now())
		clock.Advance(time.Second)
	}

	hot := p.GetHotKeys(1)
	require.Len(t, hot, 1)
	assert.Equal(t, 10, hot[0].Count)
}

func TestPatternTracker_PredictNextAccess(t *testing.T) {
	p, clock := newTestTracker(time.Hour, 100)

	_, ok := p.PredictNextAccess("k")
	assert.False(t, ok)

	start := clock.Now()
	p.RecordAccess("k", start)
	_, ok = p.PredictNextAccess("k")
	assert.False(t, ok, "one access has no interval")

	p.RecordAccess("k", start.Add(2*time.Minute))
	p.RecordAccess("k", start.Add(6*time.Minute))

	next, ok := p.PredictNextAccess("k")
	require.True(t, ok)
	assert.Equal(t, start.Add(9*time.Minute), next)

	t.Run("out of order access", func(t *testing.T) {
		p.RecordAccess("k", start.Add(time.Minute))
		next, ok := p.PredictNextAccess("k")
		require.True(t, ok)
		assert.Equal(t, start.Add(8*time.Minute), next)
	})
}

func TestPatternTracker_Frequency(t *testing.T) {
	p, clock := newTestTracker(30*time.Minute, 100)
	for i := 0; i < 6; i++ {
		p.RecordAccess("k", clock.Now())
	}
	assert.InDelta(t, 12.0, p.Frequency("k"), 1e-9)
	assert.Equal(t, 0.0, p.Frequency("missing"))
}
