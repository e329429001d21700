package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Background job names
const (
	JobMetricsPoll     = "metrics.poll"
	JobWarmingDue      = "warming.due"
	JobWarmingOptimize = "warming.optimize"
	JobCacheSweep      = "cache.sweep"
)

// Start warms critical data (unless warming.warm_on_start is false),
// registers the background jobs and starts the scheduler. Calling it again
// is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}

	if *e.cfg.Warming.WarmOnStart {
		res := e.warming.WarmCriticalData(ctx)
		if res.Failed > 0 {
			e.log.WarnCtx(ctx, "critical warming incomplete",
				zap.Int("succeeded", res.Succeeded),
				zap.Int("failed", res.Failed),
			)
		}
	}

	if err := e.registerJobs(); err != nil {
		return ErrBuild.Wrap(err)
	}
	e.scheduler.Start()
	e.started = true

	e.log.InfoCtx(ctx, "✅ Cache engine started",
		zap.Duration("poll_interval", e.cfg.Metrics.PollInterval),
		zap.Duration("warming_interval", e.cfg.Scheduler.WarmingInterval),
	)
	return nil
}

func (e *Engine) registerJobs() error {
	s := e.scheduler
	if err := s.Every(JobMetricsPoll, e.cfg.Metrics.PollInterval, func(ctx context.Context) error {
		e.analyzer.PollLayers(ctx)
		e.analyzer.CheckAlerts(ctx)
		return nil
	}); err != nil {
		return err
	}
	if err := s.Every(JobWarmingDue, e.cfg.Scheduler.WarmingInterval, func(ctx context.Context) error {
		e.warming.RunDue(ctx)
		return nil
	}); err != nil {
		return err
	}
	if err := s.Every(JobWarmingOptimize, e.cfg.Scheduler.OptimizeInterval, func(ctx context.Context) error {
		e.tracker.Prune()
		e.warming.OptimizeSchedules()
		return nil
	}); err != nil {
		return err
	}
	return s.Every(JobCacheSweep, e.cfg.Scheduler.SweepInterval, func(ctx context.Context) error {
		e.coordinator.Sweep(ctx)
		return nil
	})
}

// Shutdown flushes pending batched invalidations, stops the scheduler,
// releases the warming pool and closes the durable tier and telemetry.
// Every step runs even when an earlier one fails. Calling it again is a no-op.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	if e.invalidation != nil {
		if err := e.invalidation.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.scheduler != nil {
		if err := e.scheduler.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.warming != nil {
		if err := e.warming.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.durable != nil {
		if err := e.durable.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.telemetry != nil {
		if err := e.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		e.log.ErrorCtx(ctx, "cache engine shutdown incomplete", zap.Error(err))
		return ErrShutdown.Wrap(err)
	}
	e.log.InfoCtx(ctx, "✅ Cache engine stopped")
	return nil
}
