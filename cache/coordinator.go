package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const instrumentationName = "github.com/KOMKZ/go-yogan-cache/cache"

// staleMark invalidates everything written before seq (memory) or at/before
// at (durable envelopes)
type staleMark struct {
	seq uint64
	at  time.Time
}

type patternMark struct {
	re   *regexp.Regexp
	mark staleMark
}

type coordinatorStats struct {
	memHits       atomic.Int64
	memMisses     atomic.Int64
	durHits       atomic.Int64
	durMisses     atomic.Int64
	durErrors     atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	computes      atomic.Int64
	computeErrors atomic.Int64
	fencedWrites  atomic.Int64
}

// Coordinator 多级缓存协调器
//
// It owns the memory EntryStore and fronts the optional durable tier.
// mu serializes writes against invalidations and guards the stale marks and
// the fence log; reads take it shared. Durable calls never hold mu.
type Coordinator struct {
	cfg        Config
	store      *EntryStore
	durable    DurableTier
	serializer Serializer
	observer   Observer
	access     AccessRecorder
	deps       DependencyRecorder
	log        *logger.CtxZapLogger
	tracer     trace.Tracer
	now        func() time.Time
	sf         singleflight.Group

	mu       sync.RWMutex
	clock    uint64
	fence    *fenceLog
	purging  map[uint64]fenceRecord
	tagMarks map[string]staleMark
	keyMarks map[string]staleMark
	patMarks []patternMark

	stats coordinatorStats
}

// NewCoordinator creates a coordinator with a memory tier of cfg.MaxEntries
func NewCoordinator(cfg Config, opts ...CoordinatorOption) *Coordinator {
	cfg.ApplyDefaults()
	c := &Coordinator{
		cfg:        cfg,
		serializer: NewJSONSerializer(),
		observer:   nopObserver{},
		log:        logger.NewNopLogger(),
		tracer:     otel.Tracer(instrumentationName),
		now:        time.Now,
		fence:      newFenceLog(cfg.FenceLogSize),
		purging:    make(map[uint64]fenceRecord),
		tagMarks:   make(map[string]staleMark),
		keyMarks:   make(map[string]staleMark),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = NewEntryStore(cfg.MaxEntries, c.onRemoval)
	c.store.now = c.now
	return c
}

// Config returns the effective configuration
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Durable returns the durable tier, or nil when running memory-only
func (c *Coordinator) Durable() DurableTier {
	return c.durable
}

// Serializer returns the serializer used by Fetch and the durable envelopes
func (c *Coordinator) Serializer() Serializer {
	return c.serializer
}

// Get looks up memory, then the durable tier. A durable hit is promoted.
func (c *Coordinator) Get(ctx context.Context, key string) ([]byte, bool) {
	if e, ok := c.lookupMemory(key); ok {
		c.stats.memHits.Inc()
		c.observer.ObserveGet(LayerMemory, true)
		c.recordAccess(key)
		return e.Value, true
	}
	c.stats.memMisses.Inc()
	c.observer.ObserveGet(LayerMemory, false)

	if c.durable == nil {
		return nil, false
	}
	value, ok := c.getDurable(ctx, key)
	c.observer.ObserveGet(LayerDurable, ok)
	if !ok {
		c.stats.durMisses.Inc()
		return nil, false
	}
	c.stats.durHits.Inc()
	c.recordAccess(key)
	return value, true
}

// GetOrCompute returns the cached value or computes, stores and returns it.
// Concurrent callers for the same key share one compute; each may give up
// on its own ctx without cancelling the compute.
func (c *Coordinator) GetOrCompute(ctx context.Context, key string, fn ComputeFunc, opts ...Option) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyInvalid
	}
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.ttlSet {
		o.ttl = c.cfg.DefaultTTL
	}
	if o.timeout <= 0 {
		o.timeout = c.cfg.ComputeTimeout
	}

	ctx, span := c.tracer.Start(ctx, "cache.GetOrCompute",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if !o.forceRefresh {
		if v, ok := c.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	ch := c.sf.DoChan(key, func() (any, error) {
		return c.compute(ctx, key, fn, o)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return nil, res.Err
		}
		span.SetAttributes(attribute.Bool("cache.shared", res.Shared))
		c.recordAccess(key)
		return res.Val.([]byte), nil
	}
}

func (c *Coordinator) compute(ctx context.Context, key string, fn ComputeFunc, o callOptions) ([]byte, error) {
	cp := c.Checkpoint()
	c.stats.computes.Inc()

	// The compute outlives any single waiter but not its own deadline.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	type result struct {
		value []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("compute panic: %v", r)}
			}
		}()
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-cctx.Done():
		r.err = cctx.Err()
	}
	if r.err != nil {
		c.stats.computeErrors.Inc()
		c.log.WarnCtx(ctx, "cache compute failed", zap.String("key", key), zap.Error(r.err))
		return nil, ErrCompute.WithMsgf("缓存值计算失败: %s", key).Wrap(r.err)
	}

	if _, err := c.write(ctx, &cp, key, r.value, o.ttl, o.tags); err != nil {
		c.log.WarnCtx(ctx, "computed value not stored in durable tier", zap.String("key", key), zap.Error(err))
	}
	if c.deps != nil {
		for _, src := range o.dependsOn {
			if src != "" && src != key {
				c.deps.AddDependency(key, src)
				c.tagSource(src)
			}
		}
	}
	return r.value, nil
}

// Set writes both tiers. A durable failure is returned after the memory write.
func (c *Coordinator) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	_, err := c.write(ctx, nil, key, value, ttl, tags)
	return err
}

// Checkpoint marks the current position for SetSince
func (c *Coordinator) Checkpoint() Checkpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Checkpoint(c.clock)
}

// SetSince writes only if no invalidation covering key or tags happened after
// cp. It reports whether the value was stored.
func (c *Coordinator) SetSince(ctx context.Context, cp Checkpoint, key string, value []byte, ttl time.Duration, tags ...string) (bool, error) {
	return c.write(ctx, &cp, key, value, ttl, tags)
}

func (c *Coordinator) write(ctx context.Context, since *Checkpoint, key string, value []byte, ttl time.Duration, tags []string) (bool, error) {
	if key == "" {
		return false, ErrKeyInvalid
	}
	tags = normalizeTags(tags)
	now := c.now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	if since != nil && c.fence.covers(uint64(*since), key, tags) {
		c.mu.Unlock()
		c.stats.fencedWrites.Inc()
		c.log.DebugCtx(ctx, "write dropped by invalidation fence", zap.String("key", key))
		return false, nil
	}
	c.clock++
	version := c.clock
	c.store.put(key, value, expiresAt, tags, version)
	delete(c.keyMarks, key)
	c.mu.Unlock()
	if tagger, ok := c.deps.(SourceTagger); ok {
		tagger.TagSource(key, tags)
	}

	if c.durable == nil {
		return true, nil
	}
	raw, err := encodeEnvelope(c.serializer, envelope{
		Value:     value,
		Tags:      tags,
		StoredAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return true, err
	}
	if err := c.durable.Set(ctx, key, raw, ttl, tags); err != nil {
		c.durableFailed(ctx, "set", key, err)
		c.markKeys(key)
		return true, wrapDurable(err)
	}

	// An invalidation between the memory write and the durable write has
	// already run its durable purge; repeat it for this key.
	c.mu.RLock()
	raced := c.fence.covers(version, key, tags)
	c.mu.RUnlock()
	if raced {
		if _, err := c.durable.Delete(ctx, key); err != nil {
			c.durableFailed(ctx, "delete", key, err)
			c.markKeys(key)
		}
	}
	return true, nil
}

// tagSource passes a new dependency source's memory tags to the recorder
func (c *Coordinator) tagSource(key string) {
	tagger, ok := c.deps.(SourceTagger)
	if !ok {
		return
	}
	c.mu.RLock()
	e, found := c.store.Peek(key)
	c.mu.RUnlock()
	if found {
		tagger.TagSource(key, e.Tags)
	}
}

// Delete removes key from both tiers
func (c *Coordinator) Delete(ctx context.Context, key string) (bool, error) {
	r, err := c.InvalidateKeys(ctx, key)
	return len(r.Keys) > 0, err
}

func (c *Coordinator) lookupMemory(key string) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.store.Get(key)
	stale := ok && c.entryStaleLocked(e)
	c.mu.RUnlock()

	if !stale {
		return e, ok
	}
	c.mu.Lock()
	if cur, ok := c.store.Peek(key); ok && cur.version == e.version {
		c.store.Delete(key)
	}
	c.mu.Unlock()
	return nil, false
}

// entryStaleLocked applies lazy marks to a memory entry. Marks left by failed
// durable purges never match here since memory was purged directly.
func (c *Coordinator) entryStaleLocked(e *Entry) bool {
	for _, t := range e.Tags {
		if m, ok := c.tagMarks[t]; ok && m.seq > e.version {
			return true
		}
	}
	return false
}

func (c *Coordinator) envelopeStaleLocked(key string, env envelope) bool {
	for _, t := range env.Tags {
		if m, ok := c.tagMarks[t]; ok && !env.StoredAt.After(m.at) {
			return true
		}
	}
	if m, ok := c.keyMarks[key]; ok && !env.StoredAt.After(m.at) {
		return true
	}
	for _, pm := range c.patMarks {
		if !env.StoredAt.After(pm.mark.at) && pm.re.MatchString(key) {
			return true
		}
	}
	return false
}

func (c *Coordinator) getDurable(ctx context.Context, key string) ([]byte, bool) {
	cp := c.Checkpoint()
	raw, found, err := c.durable.Get(ctx, key)
	if err != nil {
		c.durableFailed(ctx, "get", key, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	env, err := decodeEnvelope(c.serializer, raw)
	if err != nil {
		c.log.WarnCtx(ctx, "durable value is not a cache envelope", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if env.expired(c.now()) {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.envelopeStaleLocked(key, env) || c.purgingLocked(key, env.Tags) {
		return nil, false
	}
	// The value may predate an invalidation that started or finished
	// during the durable read; treat it as a miss.
	if c.fence.coversRead(uint64(cp), key, env.Tags) {
		c.stats.fencedWrites.Inc()
		return nil, false
	}
	c.clock++
	c.store.put(key, env.Value, env.ExpiresAt, env.Tags, c.clock)
	return env.Value, true
}

// Removal what an invalidation removed
type Removal struct {
	// Keys removed from the memory tier; for key invalidation, from either tier
	Keys []string `json:"keys"`

	// Durable entries removed from the durable tier
	Durable int `json:"durable"`
}

// Count estimates distinct entries removed; the tiers usually mirror each other
func (r Removal) Count() int {
	if r.Durable > len(r.Keys) {
		return r.Durable
	}
	return len(r.Keys)
}

// Merge folds o into r
func (r *Removal) Merge(o Removal) {
	r.Keys = append(r.Keys, o.Keys...)
	r.Durable += o.Durable
}

// InvalidateKeys removes keys from both tiers
func (c *Coordinator) InvalidateKeys(ctx context.Context, keys ...string) (Removal, error) {
	keys = normalizeTags(keys)
	if len(keys) == 0 {
		return Removal{}, nil
	}
	ctx, span := c.tracer.Start(ctx, "cache.InvalidateKeys",
		trace.WithAttributes(attribute.Int("cache.keys", len(keys))))
	defer span.End()

	var res Removal
	removed := make(map[string]struct{}, len(keys))

	c.mu.Lock()
	seq := c.nextSeqLocked()
	for _, k := range keys {
		if c.store.Delete(k) {
			res.Keys = append(res.Keys, k)
			removed[k] = struct{}{}
		}
	}
	rec := fenceRecord{seq: seq, keys: keys}
	c.beginPurgeLocked(rec)
	c.mu.Unlock()

	if c.durable == nil {
		return res, nil
	}
	defer c.endPurge(rec)
	var firstErr error
	for _, k := range keys {
		ok, err := c.durable.Delete(ctx, k)
		if err != nil {
			c.durableFailed(ctx, "delete", k, err)
			c.markKeys(k)
			if firstErr == nil {
				firstErr = wrapDurable(err)
			}
			continue
		}
		if !ok {
			continue
		}
		res.Durable++
		if _, seen := removed[k]; !seen {
			res.Keys = append(res.Keys, k)
		}
	}
	return res, firstErr
}

// InvalidateTags removes every entry carrying any of tags from both tiers
func (c *Coordinator) InvalidateTags(ctx context.Context, tags ...string) (Removal, error) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return Removal{}, nil
	}
	ctx, span := c.tracer.Start(ctx, "cache.InvalidateTags",
		trace.WithAttributes(attribute.StringSlice("cache.tags", tags)))
	defer span.End()

	var res Removal
	c.mu.Lock()
	seq := c.nextSeqLocked()
	for _, t := range tags {
		res.Keys = append(res.Keys, c.store.removeTag(t, 0)...)
	}
	rec := fenceRecord{seq: seq, tags: tags}
	c.beginPurgeLocked(rec)
	c.mu.Unlock()

	if c.durable == nil {
		return res, nil
	}
	defer c.endPurge(rec)
	var firstErr error
	for _, t := range tags {
		n, err := c.durable.DeleteByTag(ctx, t)
		if err != nil {
			c.durableFailed(ctx, "delete_by_tag", t, err)
			c.markTags(t)
			if firstErr == nil {
				firstErr = wrapDurable(err)
			}
			continue
		}
		res.Durable += n
	}
	return res, firstErr
}

// InvalidateMatching removes every key matching re from both tiers
func (c *Coordinator) InvalidateMatching(ctx context.Context, re *regexp.Regexp) (Removal, error) {
	if re == nil {
		return Removal{}, nil
	}
	ctx, span := c.tracer.Start(ctx, "cache.InvalidateMatching",
		trace.WithAttributes(attribute.String("cache.pattern", re.String())))
	defer span.End()

	var res Removal
	c.mu.Lock()
	seq := c.nextSeqLocked()
	res.Keys = c.store.removeMatching(re)
	rec := fenceRecord{seq: seq, pattern: re}
	c.beginPurgeLocked(rec)
	c.mu.Unlock()

	if c.durable == nil {
		return res, nil
	}
	defer c.endPurge(rec)
	n, err := c.durable.DeleteMatching(ctx, re)
	if err != nil {
		c.durableFailed(ctx, "delete_matching", re.String(), err)
		c.mu.Lock()
		c.patMarks = append(c.patMarks, patternMark{re: re, mark: staleMark{seq: c.nextSeqLocked(), at: c.now()}})
		c.mu.Unlock()
		return res, wrapDurable(err)
	}
	res.Durable = n
	return res, nil
}

// MarkStale lazily invalidates tags: entries written before the mark read as
// misses from now on and are removed by the next Sweep.
func (c *Coordinator) MarkStale(ctx context.Context, tags ...string) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return
	}
	c.markTags(tags...)
	c.log.DebugCtx(ctx, "tags marked stale", zap.Strings("tags", tags))
}

func (c *Coordinator) markTags(tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := staleMark{seq: c.nextSeqLocked(), at: c.now()}
	for _, t := range tags {
		c.tagMarks[t] = m
	}
	c.fence.append(fenceRecord{seq: m.seq, tags: tags})
}

func (c *Coordinator) markKeys(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := staleMark{seq: c.nextSeqLocked(), at: c.now()}
	for _, k := range keys {
		c.keyMarks[k] = m
	}
}

// beginPurgeLocked fences rec and, with a durable tier, keeps it in flight
// until endPurge so durable reads cannot promote what is being purged
func (c *Coordinator) beginPurgeLocked(rec fenceRecord) {
	c.fence.append(rec)
	if c.durable != nil {
		c.purging[rec.seq] = rec
	}
}

func (c *Coordinator) endPurge(rec fenceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.purging, rec.seq)
	rec.seq = c.nextSeqLocked()
	rec.settled = true
	c.fence.append(rec)
}

func (c *Coordinator) purgingLocked(key string, tags []string) bool {
	for _, rec := range c.purging {
		if rec.covers(key, tags) {
			return true
		}
	}
	return false
}

func (c *Coordinator) nextSeqLocked() uint64 {
	c.clock++
	return c.clock
}

// SweepResult what one Sweep pass did
type SweepResult struct {
	Expired        int `json:"expired"`
	Stale          int `json:"stale"`
	DurablePurged  int `json:"durable_purged"`
	DurableExpired int `json:"durable_expired"`
	Pending        int `json:"pending"`
}

// Sweep removes expired memory entries, applies stale marks to both tiers and
// retries durable purges that failed earlier. A mark is dropped once its
// durable purge succeeds.
func (c *Coordinator) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	c.mu.Lock()
	res.Expired = c.store.SweepExpired(c.now())
	tagSnap := make(map[string]staleMark, len(c.tagMarks))
	for t, m := range c.tagMarks {
		tagSnap[t] = m
		res.Stale += len(c.store.removeTag(t, m.seq))
	}
	keySnap := make(map[string]staleMark, len(c.keyMarks))
	for k, m := range c.keyMarks {
		keySnap[k] = m
	}
	patSnap := append([]patternMark(nil), c.patMarks...)
	c.mu.Unlock()

	if c.durable == nil {
		c.mu.Lock()
		for t, m := range tagSnap {
			if c.tagMarks[t] == m {
				delete(c.tagMarks, t)
			}
		}
		c.mu.Unlock()
		return res
	}

	for t, m := range tagSnap {
		n, err := c.durable.DeleteByTag(ctx, t)
		if err != nil {
			c.durableFailed(ctx, "sweep_tag", t, err)
			continue
		}
		res.DurablePurged += n
		c.mu.Lock()
		if c.tagMarks[t] == m {
			delete(c.tagMarks, t)
		}
		c.mu.Unlock()
	}
	for k, m := range keySnap {
		ok, err := c.durable.Delete(ctx, k)
		if err != nil {
			c.durableFailed(ctx, "sweep_key", k, err)
			continue
		}
		if ok {
			res.DurablePurged++
		}
		c.mu.Lock()
		if c.keyMarks[k] == m {
			delete(c.keyMarks, k)
		}
		c.mu.Unlock()
	}
	for _, pm := range patSnap {
		n, err := c.durable.DeleteMatching(ctx, pm.re)
		if err != nil {
			c.durableFailed(ctx, "sweep_pattern", pm.re.String(), err)
			continue
		}
		res.DurablePurged += n
		c.mu.Lock()
		for i := range c.patMarks {
			if c.patMarks[i].mark == pm.mark && c.patMarks[i].re == pm.re {
				c.patMarks = append(c.patMarks[:i], c.patMarks[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}

	if p, ok := c.durable.(ExpiryPurger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			c.durableFailed(ctx, "purge_expired", "", err)
		}
		res.DurableExpired = n
	}

	c.mu.RLock()
	res.Pending = len(c.tagMarks) + len(c.keyMarks) + len(c.patMarks)
	c.mu.RUnlock()

	if res.Expired+res.Stale+res.DurablePurged+res.DurableExpired > 0 {
		c.log.DebugCtx(ctx, "cache sweep",
			zap.Int("expired", res.Expired),
			zap.Int("stale", res.Stale),
			zap.Int("durable_purged", res.DurablePurged),
			zap.Int("pending", res.Pending),
		)
	}
	return res
}

// LayerStats one tier's counters
type LayerStats struct {
	Layer       string `json:"layer"`
	Available   bool   `json:"available"`
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Evictions   int64  `json:"evictions"`
	Expirations int64  `json:"expirations"`
	Errors      int64  `json:"errors"`
}

// HitRate hits / (hits + misses); 0 before the first lookup
func (s LayerStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Utilization size / capacity; 0 for tiers without a fixed capacity
func (s LayerStats) Utilization() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Capacity)
}

// LayerStats returns memory then durable stats
func (c *Coordinator) LayerStats() []LayerStats {
	stats := []LayerStats{{
		Layer:       LayerMemory,
		Available:   true,
		Size:        c.store.Len(),
		Capacity:    c.store.Capacity(),
		Hits:        c.stats.memHits.Load(),
		Misses:      c.stats.memMisses.Load(),
		Evictions:   c.stats.evictions.Load(),
		Expirations: c.stats.expirations.Load(),
	}}
	if c.durable != nil {
		d := LayerStats{
			Layer:     LayerDurable,
			Available: true,
			Hits:      c.stats.durHits.Load(),
			Misses:    c.stats.durMisses.Load(),
			Errors:    c.stats.durErrors.Load(),
		}
		if l, ok := c.durable.(interface{ Len() int }); ok {
			d.Size = l.Len()
		}
		if g, ok := c.durable.(*GuardedDurable); ok {
			d.Available = g.BreakerState() != "open"
			if l, ok := g.Inner().(interface{ Len() int }); ok {
				d.Size = l.Len()
			}
		}
		stats = append(stats, d)
	}
	return stats
}

// Stats coordinator-wide counters
type Stats struct {
	Computes      int64 `json:"computes"`
	ComputeErrors int64 `json:"compute_errors"`
	FencedWrites  int64 `json:"fenced_writes"`
	PendingMarks  int   `json:"pending_marks"`
}

// Stats returns compute and fence counters
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	pending := len(c.tagMarks) + len(c.keyMarks) + len(c.patMarks)
	c.mu.RUnlock()
	return Stats{
		Computes:      c.stats.computes.Load(),
		ComputeErrors: c.stats.computeErrors.Load(),
		FencedWrites:  c.stats.fencedWrites.Load(),
		PendingMarks:  pending,
	}
}

// Keys returns memory keys, least recently used first
func (c *Coordinator) Keys() []string {
	return c.store.Keys()
}

// KeysByTag returns memory keys carrying tag
func (c *Coordinator) KeysByTag(tag string) []string {
	return c.store.KeysByTag(tag)
}

func (c *Coordinator) onRemoval(e *Entry, reason RemovalReason) {
	switch reason {
	case RemovedEvicted:
		c.stats.evictions.Inc()
		c.observer.ObserveEviction(LayerMemory)
	case RemovedExpired:
		c.stats.expirations.Inc()
		c.observer.ObserveExpiration(LayerMemory)
	}
}

func (c *Coordinator) recordAccess(key string) {
	if c.access != nil {
		c.access.RecordAccess(key, c.now())
	}
}

func (c *Coordinator) durableFailed(ctx context.Context, op, target string, err error) {
	c.stats.durErrors.Inc()
	c.log.WarnCtx(ctx, "durable tier call failed",
		zap.String("op", op),
		zap.String("target", target),
		zap.Bool("canceled", errors.Is(err, context.Canceled)),
		zap.Error(err),
	)
}
