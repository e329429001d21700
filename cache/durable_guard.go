package cache

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardedDurable wraps a tier with a per-call timeout, an optional circuit
// breaker and an optional negative-lookup bloom filter. While the breaker is
// open every call fails fast with ErrDurableTier and the coordinator serves
// from memory only.
type GuardedDurable struct {
	inner     DurableTier
	cb        *gobreaker.CircuitBreaker
	opTimeout time.Duration
	log       *logger.CtxZapLogger

	filterMu sync.Mutex
	filter   *bloom.BloomFilter
}

// NewGuardedDurable wraps inner according to cfg
func NewGuardedDurable(inner DurableTier, cfg DurableConfig, log *logger.CtxZapLogger) *GuardedDurable {
	if log == nil {
		log = logger.NewNopLogger()
	}
	g := &GuardedDurable{
		inner:     inner,
		opTimeout: cfg.OpTimeout,
		log:       log,
	}

	if cfg.Breaker.Enabled {
		failures := cfg.Breaker.ConsecutiveFailures
		g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "durable:" + inner.Name(),
			MaxRequests: cfg.Breaker.HalfOpenRequests,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("durable tier breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	if cfg.NegativeFilter.Enabled {
		g.filter = bloom.NewWithEstimates(cfg.NegativeFilter.ExpectedItems, cfg.NegativeFilter.FalsePositiveRate)
	}
	return g
}

func (g *GuardedDurable) Name() string {
	return g.inner.Name()
}

// Inner returns the wrapped tier
func (g *GuardedDurable) Inner() DurableTier {
	return g.inner
}

// BreakerState returns closed, half-open or open; "disabled" without a breaker
func (g *GuardedDurable) BreakerState() string {
	if g.cb == nil {
		return "disabled"
	}
	return g.cb.State().String()
}

func (g *GuardedDurable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if g.filter != nil && !g.mightContain(key) {
		return nil, false, nil
	}
	type result struct {
		value []byte
		found bool
	}
	r, err := guardCall(g, ctx, func(ctx context.Context) (result, error) {
		v, found, err := g.inner.Get(ctx, key)
		return result{v, found}, err
	})
	return r.value, r.found, err
}

func (g *GuardedDurable) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if g.filter != nil {
		g.filterMu.Lock()
		g.filter.AddString(key)
		g.filterMu.Unlock()
	}
	_, err := guardCall(g, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.Set(ctx, key, value, ttl, tags)
	})
	return err
}

func (g *GuardedDurable) Delete(ctx context.Context, key string) (bool, error) {
	return guardCall(g, ctx, func(ctx context.Context) (bool, error) {
		return g.inner.Delete(ctx, key)
	})
}

func (g *GuardedDurable) DeleteByTag(ctx context.Context, tag string) (int, error) {
	return guardCall(g, ctx, func(ctx context.Context) (int, error) {
		return g.inner.DeleteByTag(ctx, tag)
	})
}

func (g *GuardedDurable) DeleteMatching(ctx context.Context, re *regexp.Regexp) (int, error) {
	return guardCall(g, ctx, func(ctx context.Context) (int, error) {
		return g.inner.DeleteMatching(ctx, re)
	})
}

// PurgeExpired forwards to the inner tier when it supports purging
func (g *GuardedDurable) PurgeExpired(ctx context.Context) (int, error) {
	p, ok := g.inner.(ExpiryPurger)
	if !ok {
		return 0, nil
	}
	return guardCall(g, ctx, p.PurgeExpired)
}

// Ping checks the inner tier directly so health reflects the backend even
// while the breaker is open
func (g *GuardedDurable) Ping(ctx context.Context) error {
	p, ok := g.inner.(Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return p.Ping(ctx)
}

func (g *GuardedDurable) Close() error {
	return g.inner.Close()
}

func (g *GuardedDurable) mightContain(key string) bool {
	g.filterMu.Lock()
	defer g.filterMu.Unlock()
	return g.filter.TestString(key)
}

func (g *GuardedDurable) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.opTimeout)
}

func guardCall[T any](g *GuardedDurable, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if g.cb == nil {
		v, err := fn(ctx)
		return v, wrapDurable(err)
	}

	out, err := g.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		if v, ok := out.(T); ok {
			zero = v
		}
		return zero, wrapDurable(err)
	}
	return out.(T), nil
}

// wrapDurable keeps errors already coded as ErrDurableTier and wraps the rest
func wrapDurable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDurableTier) {
		return err
	}
	return ErrDurableTier.Wrap(err)
}
