package health

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats []cache.LayerStats

func (s stubStats) LayerStats() []cache.LayerStats { return s }

func TestDurableChecker_DegradesWhenBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	tier, err := cache.OpenDurable(ctx, cache.DurableConfig{
		Driver: cache.DriverRedis,
		Redis:  redis.Config{Addrs: []string{mr.Addr()}, DialTimeout: 200 * time.Millisecond},
	}, nil)
	require.NoError(t, err)
	defer tier.Close()

	checker := NewDurableChecker(tier)
	require.NotNil(t, checker)
	assert.Equal(t, "durable:redis", checker.Name())
	assert.NoError(t, checker.Check(ctx))

	mr.Close()
	err = checker.Check(ctx)
	require.Error(t, err)
	assert.True(t, IsDegraded(err))

	agg := NewAggregator(time.Second)
	agg.Register(checker, NewMemoryChecker(stubStats{{Layer: cache.LayerMemory, Available: true, Capacity: 10}}, 0.98))
	resp := agg.Check(ctx)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusHealthy, resp.Checks["memory"].Status)
	assert.Equal(t, StatusDegraded, resp.Checks["durable:redis"].Status)
}

func TestNewDurableChecker_NoTier(t *testing.T) {
	assert.Nil(t, NewDurableChecker(nil))

	agg := NewAggregator(time.Second)
	agg.Register(NewDurableChecker(nil))
	assert.Empty(t, agg.Check(context.Background()).Checks)
}

func TestMemoryChecker(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		stats    stubStats
		degraded bool
		healthy  bool
	}{
		{"healthy", stubStats{{Layer: cache.LayerMemory, Available: true, Size: 5, Capacity: 10}}, false, true},
		{"full", stubStats{{Layer: cache.LayerMemory, Available: true, Size: 10, Capacity: 10}}, true, false},
		{"missing", stubStats{{Layer: cache.LayerDurable, Available: true}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMemoryChecker(tt.stats, 0.98).Check(ctx)
			if tt.healthy {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.degraded, IsDegraded(err))
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())

	cfg.MemoryDegradedAt = 2
	assert.Error(t, cfg.Validate())
}
