package cache

import (
	"context"

	"github.com/KOMKZ/go-yogan-cache/database"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/KOMKZ/go-yogan-cache/redis"
	"github.com/KOMKZ/go-yogan-cache/validator"
	"go.uber.org/zap"
)

// OpenDurable builds the configured durable tier wrapped in a GuardedDurable.
// Driver "none" returns a nil tier and the coordinator runs memory-only.
// The returned tier owns its connection; Close releases it.
func OpenDurable(ctx context.Context, cfg DurableConfig, log *logger.CtxZapLogger) (*GuardedDurable, error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrConfigInvalid); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	var inner DurableTier
	switch cfg.Driver {
	case DriverNone:
		return nil, nil
	case DriverMemory:
		inner = NewMemoryDurable(cfg.CleanupInterval)
	case DriverRedis:
		client, err := redis.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, ErrDurableTier.Wrap(err)
		}
		rd := NewRedisDurable(client, cfg.KeyPrefix)
		rd.owned = true
		inner = rd
	case DriverGorm:
		db, err := database.Open(cfg.Database, log)
		if err != nil {
			return nil, ErrDurableTier.Wrap(err)
		}
		gd, err := NewGormDurable(db)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		gd.owned = true
		inner = gd
	}

	log.InfoCtx(ctx, "durable tier opened",
		zap.String("driver", cfg.Driver),
		zap.Bool("breaker", cfg.Breaker.Enabled),
		zap.Bool("negative_filter", cfg.NegativeFilter.Enabled),
	)
	return NewGuardedDurable(inner, cfg, log), nil
}
