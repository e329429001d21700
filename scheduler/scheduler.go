// Package scheduler runs the engine's periodic jobs on gocron: metrics
// polling, due warming tasks, schedule optimization and sweeps.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// JobFunc is one execution of a periodic job. ctx is cancelled on shutdown.
type JobFunc func(ctx context.Context) error

// JobInfo 任务状态
type JobInfo struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastError string        `json:"last_error,omitempty"`
	NextRun   time.Time     `json:"next_run,omitempty"`
}

type job struct {
	name     string
	interval time.Duration
	handle   gocron.Job
	runs     atomic.Int64
	failures atomic.Int64
	lastErr  atomic.String
}

// Scheduler wraps a gocron scheduler with named interval jobs
type Scheduler struct {
	cfg    Config
	s      gocron.Scheduler
	log    *logger.CtxZapLogger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]*job
	started bool
}

// New creates a stopped scheduler
func New(cfg Config, log *logger.CtxZapLogger) (*Scheduler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, ErrConfigInvalid.Wrap(err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	s, err := gocron.NewScheduler(
		gocron.WithStopTimeout(cfg.StopTimeout),
		gocron.WithLogger(gocronLogger{log}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:    cfg,
		s:      s,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}, nil
}

// Config returns the applied configuration
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Every registers fn to run every interval. A run still in progress when the
// next one is due is skipped. Names are unique.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) error {
	if name == "" || fn == nil {
		return ErrJobInvalid.WithMsg("任务名称和函数不能为空")
	}
	if interval <= 0 {
		return ErrJobInvalid.WithMsgf("任务 %s 的间隔必须大于 0", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return ErrJobInvalid.WithMsgf("任务已存在: %s", name)
	}

	j := &job{name: name, interval: interval}
	handle, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.execute(j, fn) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return ErrJobInvalid.Wrap(err)
	}
	j.handle = handle
	s.jobs[name] = j
	return nil
}

func (s *Scheduler) execute(j *job, fn JobFunc) {
	j.runs.Inc()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(s.ctx)
	}()
	if err != nil {
		j.failures.Inc()
		j.lastErr.Store(err.Error())
		s.log.WarnCtx(s.ctx, "scheduled job failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	j.lastErr.Store("")
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.s.Start()
	s.log.DebugCtx(s.ctx, "scheduler started", zap.Int("jobs", len(s.jobs)))
}

// RunNow triggers a job outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound.WithMsgf("调度任务不存在: %s", name)
	}
	return j.handle.RunNow()
}

// Jobs returns the state of every job sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{
			Name:      j.name,
			Interval:  j.interval,
			Runs:      j.runs.Load(),
			Failures:  j.failures.Load(),
			LastError: j.lastErr.Load(),
		}
		if next, err := j.handle.NextRun(); err == nil {
			info.NextRun = next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Shutdown cancels job contexts and waits for running jobs, bounded by ctx
// and the configured stop timeout
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.s.Shutdown()
	}()

	select {
	case err := <-done:
		if err != nil {
			return ErrStopTimeout.Wrap(err)
		}
		s.log.DebugCtx(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.WarnCtx(ctx, "scheduler shutdown interrupted", zap.Error(ctx.Err()))
		return ErrStopTimeout.Wrap(ctx.Err())
	}
}

// gocronLogger routes gocron's own logging into zap
type gocronLogger struct {
	log *logger.CtxZapLogger
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, zap.Any("args", args)) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, zap.Any("args", args)) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, zap.Any("args", args)) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, zap.Any("args", args)) }
