// Package invalidation turns committed writes into cache invalidations:
// tag rules with priorities and strategies, data relationships with bounded
// cascade, a key dependency graph and a coalescing batch window.
package invalidation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/validator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/KOMKZ/go-yogan-cache/invalidation"

// Invalidator is the coordinator surface the engine drives
type Invalidator interface {
	InvalidateKeys(ctx context.Context, keys ...string) (cache.Removal, error)
	InvalidateTags(ctx context.Context, tags ...string) (cache.Removal, error)
	InvalidateMatching(ctx context.Context, re *regexp.Regexp) (cache.Removal, error)
	MarkStale(ctx context.Context, tags ...string)
}

// Option configures an Engine
type Option func(*Engine)

// WithGraph shares a dependency graph, usually the coordinator's recorder
func WithGraph(g *Graph) Option {
	return func(e *Engine) {
		if g != nil {
			e.graph = g
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Engine 失效引擎
type Engine struct {
	cfg    Config
	target Invalidator
	graph  *Graph
	batch  *batcher
	log    *logger.CtxZapLogger
	tracer trace.Tracer
	now    func() time.Time

	mu            sync.RWMutex
	rules         map[string]*Rule
	byTag         map[string][]*Rule
	relationships map[string]DataRelationship
	stats         map[string]*RuleStats
	closed        bool
}

// NewEngine creates an engine over target and registers the relationships
// and rules declared in cfg
func NewEngine(cfg Config, target Invalidator, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:           cfg,
		target:        target,
		graph:         NewGraph(),
		batch:         newBatcher(cfg.BatchDelay),
		log:           logger.NewNopLogger(),
		tracer:        otel.Tracer(instrumentationName),
		now:           time.Now,
		rules:         make(map[string]*Rule),
		byTag:         make(map[string][]*Rule),
		relationships: make(map[string]DataRelationship),
		stats:         make(map[string]*RuleStats),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, rc := range cfg.Relationships {
		rel := DataRelationship{SourceType: rc.SourceType, TargetTypes: rc.TargetTypes, CascadeDepth: rc.CascadeDepth}
		if err := e.RegisterRelationship(rel); err != nil {
			return nil, err
		}
	}
	for _, rc := range cfg.Rules {
		if err := e.RegisterRule(rc.Rule()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Graph returns the dependency graph
func (e *Engine) Graph() *Graph {
	return e.graph
}

// RegisterRelationship adds or replaces the relationship for its source type
func (e *Engine) RegisterRelationship(rel DataRelationship) error {
	if rel.CascadeDepth == 0 {
		rel.CascadeDepth = 1
	}
	if err := validator.Validate(rel, ErrRelationshipInvalid); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relationships[rel.SourceType] = rel
	return nil
}

// RegisterRule validates rule and indexes it by trigger tag. Names are unique.
func (e *Engine) RegisterRule(rule Rule) error {
	if rule.Strategy == "" {
		rule.Strategy = StrategyImmediate
	}
	if err := validator.Validate(rule, ErrRuleInvalid); err != nil {
		return err
	}
	if rule.Pattern != "" {
		rule.re = regexp.MustCompile(rule.Pattern)
	}
	rule.TriggerTags = dedupe(rule.TriggerTags)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[rule.Name]; exists {
		return ErrRuleInvalid.WithMsgf("规则已存在: %s", rule.Name)
	}
	if rule.Relationship != "" {
		if _, ok := e.relationships[rule.Relationship]; !ok {
			return ErrRuleInvalid.WithMsgf("规则 %s 引用了未注册的数据关系: %s", rule.Name, rule.Relationship)
		}
	}

	r := &rule
	e.rules[r.Name] = r
	e.stats[r.Name] = &RuleStats{Name: r.Name}
	for _, tag := range r.TriggerTags {
		list := append(e.byTag[tag], r)
		sortRules(list)
		e.byTag[tag] = list
	}
	return nil
}

// UnregisterRule removes a rule by name
func (e *Engine) UnregisterRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[name]
	if !ok {
		return false
	}
	delete(e.rules, name)
	delete(e.stats, name)
	for _, tag := range r.TriggerTags {
		list := e.byTag[tag][:0]
		for _, other := range e.byTag[tag] {
			if other != r {
				list = append(list, other)
			}
		}
		if len(list) == 0 {
			delete(e.byTag, tag)
		} else {
			e.byTag[tag] = list
		}
	}
	return true
}

// Rules returns registered rules by descending priority
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	list := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		list = append(list, r)
	}
	sortRules(list)
	out := make([]Rule, len(list))
	for i, r := range list {
		out[i] = *r
	}
	return out
}

// RuleOutcome what one rule did for a write
type RuleOutcome struct {
	Rule     string   `json:"rule"`
	Strategy Strategy `json:"strategy"`
	Tags     []string `json:"tags,omitempty"`
	Removed  int      `json:"removed"`
	Deferred bool     `json:"deferred"`
}

// Result InvalidateByWrite 的结果
type Result struct {
	TriggerTags []string      `json:"trigger_tags"`
	Fired       []RuleOutcome `json:"fired"`
	Skipped     []string      `json:"skipped,omitempty"`
	Failed      []string      `json:"failed,omitempty"`
	Removed     int           `json:"removed"`
}

// InvalidateByWrite applies every rule triggered by a write to
// resourceType/resourceID. Rules run by descending priority; one whose
// condition panics is logged and skipped. The first tier error is returned
// after all rules ran.
func (e *Engine) InvalidateByWrite(ctx context.Context, resourceType, resourceID, operation string, data map[string]any) (Result, error) {
	w := WriteContext{ResourceType: resourceType, ResourceID: resourceID, Operation: operation, Data: data}
	res := Result{TriggerTags: triggerTags(resourceType, resourceID)}

	ctx, span := e.tracer.Start(ctx, "invalidation.InvalidateByWrite",
		trace.WithAttributes(
			attribute.String("resource.type", resourceType),
			attribute.String("resource.id", resourceID),
			attribute.String("operation", operation),
		))
	defer span.End()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return res, ErrEngineClosed
	}
	rules := e.matchLocked(res.TriggerTags)
	e.mu.RUnlock()

	var firstErr error
	for _, r := range rules {
		fire, err := evaluate(r, w)
		if err != nil {
			res.Failed = append(res.Failed, r.Name)
			e.bumpStats(r.Name, func(s *RuleStats) { s.Failed++ })
			e.log.ErrorCtx(ctx, "invalidation rule condition failed",
				zap.String("rule", r.Name),
				zap.Error(ErrRuleCondition.WithMsgf("失效规则条件执行失败: %s", r.Name).Wrap(err)),
			)
			continue
		}
		if !fire {
			res.Skipped = append(res.Skipped, r.Name)
			e.bumpStats(r.Name, func(s *RuleStats) { s.Skipped++ })
			continue
		}

		out, err := e.apply(ctx, r, w)
		res.Fired = append(res.Fired, out)
		res.Removed += out.Removed
		now := e.now()
		e.bumpStats(r.Name, func(s *RuleStats) {
			s.Fired++
			s.LastFiredAt = now
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	span.SetAttributes(
		attribute.Int("invalidation.fired", len(res.Fired)),
		attribute.Int("invalidation.removed", res.Removed),
	)
	e.log.DebugCtx(ctx, "write invalidated",
		zap.String("resource_type", resourceType),
		zap.String("resource_id", resourceID),
		zap.String("operation", operation),
		zap.Int("fired", len(res.Fired)),
		zap.Int("removed", res.Removed),
	)
	return res, firstErr
}

func (e *Engine) apply(ctx context.Context, r *Rule, w WriteContext) (RuleOutcome, error) {
	tags := dedupe(append(r.tagsFor(w), e.relationshipTargets(r.Relationship)...))
	out := RuleOutcome{Rule: r.Name, Strategy: r.Strategy, Tags: tags}

	switch r.Strategy {
	case StrategyBatched:
		out.Deferred = true
		return out, e.schedule(tags, nil, r.re)

	case StrategyLazy:
		e.target.MarkStale(ctx, tags...)
		out.Deferred = true
		// there is no lazy form of a pattern; match it now
		if r.re != nil {
			rm, err := e.target.InvalidateMatching(ctx, r.re)
			out.Removed = rm.Count()
			return out, err
		}
		return out, nil

	case StrategyCascade:
		rm, firstErr := e.invalidateNow(ctx, tags, r.re)
		out.Removed = rm.Count()
		// memory reports its removed keys; sources held only by the durable
		// tier are found through the graph
		roots := append([]string(nil), rm.Keys...)
		roots = append(roots, e.graph.SourcesTagged(tags...)...)
		roots = append(roots, e.graph.SourcesMatching(r.re)...)
		for _, key := range dedupe(roots) {
			n, err := e.invalidateDependents(ctx, key)
			out.Removed += n
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return out, firstErr

	default:
		rm, err := e.invalidateNow(ctx, tags, r.re)
		out.Removed = rm.Count()
		return out, err
	}
}

func (e *Engine) invalidateNow(ctx context.Context, tags []string, re *regexp.Regexp) (cache.Removal, error) {
	var (
		rm       cache.Removal
		firstErr error
	)
	if len(tags) > 0 {
		rm, firstErr = e.target.InvalidateTags(ctx, tags...)
	}
	if re != nil {
		prm, err := e.target.InvalidateMatching(ctx, re)
		rm.Merge(prm)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return rm, firstErr
}

// InvalidateWithDependencies removes key and, following the dependency
// graph breadth-first, every key derived from it. A key that is not cached
// counts as 0.
func (e *Engine) InvalidateWithDependencies(ctx context.Context, key string, recursive bool) (int, error) {
	if key == "" {
		return 0, nil
	}
	ctx, span := e.tracer.Start(ctx, "invalidation.InvalidateWithDependencies",
		trace.WithAttributes(attribute.String("cache.key", key), attribute.Bool("recursive", recursive)))
	defer span.End()

	closure := e.graph.Closure(key, recursive, e.cfg.DependencyMaxDepth)
	rm, err := e.target.InvalidateKeys(ctx, closure...)
	for _, k := range closure {
		e.graph.Forget(k)
	}
	span.SetAttributes(attribute.Int("invalidation.removed", rm.Count()))
	return rm.Count(), err
}

// invalidateDependents removes what was derived from an already removed key
func (e *Engine) invalidateDependents(ctx context.Context, key string) (int, error) {
	closure := e.graph.Closure(key, true, e.cfg.DependencyMaxDepth)
	for _, k := range closure {
		e.graph.Forget(k)
	}
	if len(closure) <= 1 {
		return 0, nil
	}
	rm, err := e.target.InvalidateKeys(ctx, closure[1:]...)
	return rm.Count(), err
}

// relationshipTargets walks relationships breadth-first from source, at most
// min(relationship depth, MaxCascadeDepth) levels
func (e *Engine) relationshipTargets(source string) []string {
	if source == "" {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	root, ok := e.relationships[source]
	if !ok {
		return nil
	}
	depth := root.CascadeDepth
	if depth > e.cfg.MaxCascadeDepth {
		depth = e.cfg.MaxCascadeDepth
	}

	visited := map[string]struct{}{source: {}}
	var out []string
	level := []string{source}
	for d := 0; d < depth && len(level) > 0; d++ {
		var next []string
		for _, typ := range level {
			rel, ok := e.relationships[typ]
			if !ok {
				continue
			}
			for _, target := range rel.TargetTypes {
				if _, seen := visited[target]; seen {
					continue
				}
				visited[target] = struct{}{}
				out = append(out, target)
				next = append(next, target)
			}
		}
		level = next
	}
	return out
}

// matchLocked collects the rules triggered by tags, highest priority first
func (e *Engine) matchLocked(tags []string) []*Rule {
	seen := make(map[*Rule]struct{})
	var out []*Rule
	for _, t := range tags {
		for _, r := range e.byTag[t] {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sortRules(out)
	return out
}

func (e *Engine) bumpStats(name string, fn func(*RuleStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stats[name]; ok {
		fn(s)
	}
}

// Stats engine counters
type Stats struct {
	Rules       []RuleStats `json:"rules"`
	Flushes     int64       `json:"flushes"`
	PendingTags int         `json:"pending_tags"`
	PendingKeys int         `json:"pending_keys"`
	GraphEdges  int         `json:"graph_edges"`
}

// Stats returns rule counters sorted by name and the batch state
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	rules := make([]RuleStats, 0, len(e.stats))
	for _, s := range e.stats {
		rules = append(rules, *s)
	}
	e.mu.RUnlock()
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })

	tags, keys := e.batch.pending()
	e.batch.mu.Lock()
	flushes := e.batch.flushes
	e.batch.mu.Unlock()

	return Stats{
		Rules:       rules,
		Flushes:     flushes,
		PendingTags: tags,
		PendingKeys: keys,
		GraphEdges:  e.graph.Len(),
	}
}

// Close stops the batch timer and flushes what is pending. Later writes
// return ErrEngineClosed.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.batch.stop()
	_, err := e.Flush(ctx)
	return err
}

// evaluate runs the rule's condition, turning a panic into an error
func evaluate(r *Rule, w WriteContext) (fire bool, err error) {
	if r.Condition == nil {
		return true, nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("condition panic: %v", p)
		}
	}()
	return r.Condition(w), nil
}

func triggerTags(resourceType, resourceID string) []string {
	if resourceID == "" {
		return []string{resourceType}
	}
	return []string{resourceType, resourceType + ":" + resourceID}
}

func sortRules(list []*Rule) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].Name < list[j].Name
	})
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
