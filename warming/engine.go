// Package warming pre-populates the cache: registered tasks run on a
// goroutine pool in priority order, access patterns adjust their schedules
// and per-user templates warm a user's data on demand.
package warming

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/validator"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/KOMKZ/go-yogan-cache/warming"

// Writer is the coordinator surface warming writes through. SetSince drops
// a value when an invalidation overtook its compute.
type Writer interface {
	Checkpoint() cache.Checkpoint
	SetSince(ctx context.Context, cp cache.Checkpoint, key string, value []byte, ttl time.Duration, tags ...string) (bool, error)
}

// Option configures an Engine
type Option func(*Engine)

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

// WithTracker shares an access tracker, usually the one wired into the coordinator
func WithTracker(t *PatternTracker) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracker = t
		}
	}
}

// Engine 预热引擎
type Engine struct {
	cfg     Config
	target  Writer
	pool    *ants.Pool
	tracker *PatternTracker
	log     *logger.CtxZapLogger
	tracer  trace.Tracer
	now     func() time.Time

	mu         sync.RWMutex
	tasks      map[string]*Task
	templates  map[string]UserTemplate
	userWarmed map[string]time.Time
	closed     bool
}

// NewEngine creates an engine writing into target
func NewEngine(cfg Config, target Writer, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		target:     target,
		log:        logger.NewNopLogger(),
		tracer:     otel.Tracer(instrumentationName),
		now:        time.Now,
		tasks:      make(map[string]*Task),
		templates:  make(map[string]UserTemplate),
		userWarmed: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = NewPatternTracker(cfg.TrackerWindow, cfg.TrackerHistory)
	}

	pool, err := ants.NewPool(cfg.PoolSize, ants.WithPanicHandler(func(p interface{}) {
		e.log.Error("warming worker panic", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, ErrConfigInvalid.Wrapf(err, "创建协程池失败")
	}
	e.pool = pool
	return e, nil
}

// Config returns the applied configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Tracker returns the access pattern tracker
func (e *Engine) Tracker() *PatternTracker {
	return e.tracker
}

// RegisterTask validates and stores task. An empty ID is replaced by a uuid;
// a zero Interval takes the default and a zero NextRunAt makes it due now.
func (e *Engine) RegisterTask(task Task, critical bool) (string, error) {
	task.Critical = critical
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Interval == 0 {
		task.Interval = e.cfg.DefaultInterval
	}
	if err := validator.Validate(task, ErrTaskInvalid); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrEngineClosed
	}
	if _, ok := e.tasks[task.ID]; ok {
		return "", ErrTaskInvalid.WithMsgf("预热任务已存在: %s", task.ID)
	}
	if task.NextRunAt.IsZero() {
		task.NextRunAt = e.now()
	}
	task.Tags = append([]string(nil), task.Tags...)
	e.tasks[task.ID] = &task
	return task.ID, nil
}

// UnregisterTask removes a task and reports whether it existed
func (e *Engine) UnregisterTask(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tasks[id]; !ok {
		return false
	}
	delete(e.tasks, id)
	return true
}

// Task returns a copy of a registered task
func (e *Engine) Task(id string) (Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound.WithMsgf("预热任务不存在: %s", id)
	}
	return *t, nil
}

// Tasks returns copies of every task in execution order
func (e *Engine) Tasks() []Task {
	e.mu.RLock()
	out := make([]Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, *t)
	}
	e.mu.RUnlock()

	sortTasks(out)
	return out
}

// WarmCriticalData runs every critical task by descending priority. A
// failing task does not affect the others.
func (e *Engine) WarmCriticalData(ctx context.Context) WarmResult {
	ctx, span := e.tracer.Start(ctx, "warming.WarmCriticalData")
	defer span.End()

	// copies are taken under the lock; record and OptimizeSchedules mutate
	// the registered tasks concurrently
	e.mu.RLock()
	var list []Task
	for _, t := range e.tasks {
		if t.Critical {
			list = append(list, *t)
		}
	}
	e.mu.RUnlock()
	sortTasks(list)

	res := e.run(ctx, list)
	e.record(res, false)
	span.SetAttributes(attribute.Int("warming.succeeded", res.Succeeded), attribute.Int("warming.failed", res.Failed))
	e.log.InfoCtx(ctx, "critical data warmed",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int64("duration_ms", res.TotalDurationMs),
	)
	return res
}

// RunDue executes tasks whose NextRunAt has passed, critical ones first, and
// reschedules each to now + Interval
func (e *Engine) RunDue(ctx context.Context) WarmResult {
	ctx, span := e.tracer.Start(ctx, "warming.RunDue")
	defer span.End()

	now := e.now()
	e.mu.RLock()
	var due []Task
	for _, t := range e.tasks {
		if !t.NextRunAt.After(now) {
			due = append(due, *t)
		}
	}
	e.mu.RUnlock()
	if len(due) == 0 {
		return WarmResult{Tasks: []TaskResult{}}
	}
	sortTasks(due)

	res := e.run(ctx, due)
	e.record(res, true)
	span.SetAttributes(attribute.Int("warming.due", len(due)), attribute.Int("warming.failed", res.Failed))
	e.log.DebugCtx(ctx, "due warming tasks executed",
		zap.Int("due", len(due)),
		zap.Int("failed", res.Failed),
	)
	return res
}

// run submits tasks in order and waits for all of them
func (e *Engine) run(ctx context.Context, tasks []Task) WarmResult {
	start := time.Now()
	results := make([]TaskResult, len(tasks))
	var wg sync.WaitGroup

	for i := range tasks {
		i := i
		t := tasks[i]
		results[i] = TaskResult{TaskID: t.ID, Key: t.Key, Critical: t.Critical}
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			results[i] = e.execute(ctx, t)
		})
		if err != nil {
			wg.Done()
			results[i].Error = err.Error()
		}
	}
	wg.Wait()

	res := WarmResult{Tasks: results, TotalDurationMs: time.Since(start).Milliseconds()}
	for _, r := range results {
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	return res
}

// execute computes and writes one task under the task timeout
func (e *Engine) execute(ctx context.Context, t Task) (res TaskResult) {
	res = TaskResult{TaskID: t.ID, Key: t.Key, Critical: t.Critical}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = ErrComputeFailed.WithMsgf("预热任务 panic: %v", r).Error()
		}
		res.DurationMs = time.Since(start).Milliseconds()
		if !res.Success {
			e.log.WarnCtx(ctx, "warming task failed",
				zap.String("task", t.ID),
				zap.String("key", t.Key),
				zap.String("error", res.Error),
			)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	defer cancel()

	cp := e.target.Checkpoint()
	value, err := t.Compute(ctx)
	if err != nil {
		res.Error = ErrComputeFailed.Wrap(err).Error()
		return res
	}
	stored, err := e.target.SetSince(ctx, cp, t.Key, value, t.TTL, t.Tags...)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Stored = stored
	return res
}

// record updates run statistics and, for scheduled passes, NextRunAt
func (e *Engine) record(res WarmResult, reschedule bool) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range res.Tasks {
		t, ok := e.tasks[r.TaskID]
		if !ok {
			continue
		}
		t.Runs++
		t.LastRunAt = now
		t.LastElapsed = r.DurationMs
		t.LastError = r.Error
		if !r.Success {
			t.Failures++
		}
		if reschedule {
			t.NextRunAt = now.Add(t.Interval)
		}
	}
}

// Stats 预热引擎状态
type Stats struct {
	Tasks         int `json:"tasks"`
	CriticalTasks int `json:"critical_tasks"`
	Templates     int `json:"templates"`
	TrackedKeys   int `json:"tracked_keys"`
	PoolRunning   int `json:"pool_running"`
	PoolCap       int `json:"pool_cap"`
}

// Stats returns task and pool counters
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	s := Stats{Tasks: len(e.tasks), Templates: len(e.templates)}
	for _, t := range e.tasks {
		if t.Critical {
			s.CriticalTasks++
		}
	}
	e.mu.RUnlock()
	s.TrackedKeys = e.tracker.Len()
	s.PoolRunning = e.pool.Running()
	s.PoolCap = e.pool.Cap()
	return s
}

// Close waits for running tasks, bounded by ctx, and releases the pool
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if err := e.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("release warming pool: %w", err)
	}
	return nil
}
