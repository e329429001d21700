package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SlowLogHook implements redis.Hook and logs slow or failed commands
type SlowLogHook struct {
	log       *logger.CtxZapLogger
	threshold time.Duration
}

// NewSlowLogHook creates a hook that warns about commands slower than threshold
func NewSlowLogHook(log *logger.CtxZapLogger, threshold time.Duration) *SlowLogHook {
	return &SlowLogHook{log: log, threshold: threshold}
}

// DialHook passes through
func (h *SlowLogHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook times single commands
func (h *SlowLogHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd.Name(), time.Since(start), err)
		return err
	}
}

// ProcessPipelineHook times a pipeline as one unit
func (h *SlowLogHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observe(ctx, "pipeline", time.Since(start), err)
		return err
	}
}

func (h *SlowLogHook) observe(ctx context.Context, name string, elapsed time.Duration, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		h.log.WarnCtx(ctx, "redis command failed",
			zap.String("cmd", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	if elapsed >= h.threshold {
		h.log.WarnCtx(ctx, "redis command slow",
			zap.String("cmd", name),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", h.threshold),
		)
	}
}
