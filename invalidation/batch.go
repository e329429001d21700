package invalidation

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"go.uber.org/zap"
)

// batcher coalesces batched invalidations into one pass per window. The
// first schedule in a window arms the timer; later ones only add to the
// pending sets.
type batcher struct {
	mu       sync.Mutex
	delay    time.Duration
	tags     map[string]struct{}
	keys     map[string]struct{}
	patterns map[string]*regexp.Regexp
	timer    *time.Timer
	flushes  int64
}

func newBatcher(delay time.Duration) *batcher {
	return &batcher{
		delay:    delay,
		tags:     make(map[string]struct{}),
		keys:     make(map[string]struct{}),
		patterns: make(map[string]*regexp.Regexp),
	}
}

type pendingBatch struct {
	tags     []string
	keys     []string
	patterns []*regexp.Regexp
}

func (p pendingBatch) empty() bool {
	return len(p.tags) == 0 && len(p.keys) == 0 && len(p.patterns) == 0
}

// add merges into the pending sets and arms the timer if the window is not open yet
func (b *batcher) add(tags, keys []string, re *regexp.Regexp, fire func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tags {
		if t != "" {
			b.tags[t] = struct{}{}
		}
	}
	for _, k := range keys {
		if k != "" {
			b.keys[k] = struct{}{}
		}
	}
	if re != nil {
		b.patterns[re.String()] = re
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, fire)
	}
}

// take empties the pending sets and disarms the timer
func (b *batcher) take() pendingBatch {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	p := pendingBatch{
		tags: setKeys(b.tags),
		keys: setKeys(b.keys),
	}
	srcs := make([]string, 0, len(b.patterns))
	for src := range b.patterns {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		p.patterns = append(p.patterns, b.patterns[src])
	}
	b.tags = make(map[string]struct{})
	b.keys = make(map[string]struct{})
	b.patterns = make(map[string]*regexp.Regexp)
	if !p.empty() {
		b.flushes++
	}
	return p
}

func (b *batcher) pending() (tags, keys int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tags), len(b.keys)
}

func (b *batcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// ScheduleBatch queues tags and keys for the next flush. The first call in
// a window starts the BatchDelay timer; calls within the window coalesce.
func (e *Engine) ScheduleBatch(tags, keys []string) error {
	return e.schedule(tags, keys, nil)
}

func (e *Engine) schedule(tags, keys []string, re *regexp.Regexp) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrEngineClosed
	}

	e.batch.add(tags, keys, re, e.flushOnTimer)
	return nil
}

func (e *Engine) flushOnTimer() {
	ctx := context.Background()
	if _, err := e.Flush(ctx); err != nil {
		e.log.WarnCtx(ctx, "batched invalidation flush failed", zap.Error(err))
	}
}

// Flush applies everything pending in one pass and clears it
func (e *Engine) Flush(ctx context.Context) (cache.Removal, error) {
	p := e.batch.take()
	if p.empty() {
		return cache.Removal{}, nil
	}

	var (
		res      cache.Removal
		firstErr error
	)
	keep := func(r cache.Removal, err error) {
		res.Merge(r)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(p.tags) > 0 {
		keep(e.target.InvalidateTags(ctx, p.tags...))
	}
	if len(p.keys) > 0 {
		keep(e.target.InvalidateKeys(ctx, p.keys...))
	}
	for _, re := range p.patterns {
		keep(e.target.InvalidateMatching(ctx, re))
	}

	e.log.DebugCtx(ctx, "batched invalidation flushed",
		zap.Int("tags", len(p.tags)),
		zap.Int("keys", len(p.keys)),
		zap.Int("patterns", len(p.patterns)),
		zap.Int("removed", res.Count()),
	)
	return res, firstErr
}

func setKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
