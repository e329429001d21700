package redis

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Addr: "localhost:6379"}
	cfg.ApplyDefaults()

	assert.Equal(t, ModeStandalone, cfg.Mode)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Addrs)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5, cfg.MinIdleConns)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad mode", Config{Mode: "sentinel", Addrs: []string{"a:1"}}},
		{"no addrs", Config{Mode: ModeStandalone}},
		{"db out of range", Config{Mode: ModeStandalone, Addrs: []string{"a:1"}, DB: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	t.Run("connects and pings", func(t *testing.T) {
		client, err := NewClient(context.Background(), Config{Addr: mr.Addr()}, nil)
		require.NoError(t, err)
		defer client.Close()

		require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewClient(context.Background(), Config{Mode: "bogus", Addr: mr.Addr()}, nil)
		assert.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewClient(context.Background(), Config{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		}, nil)
		assert.Error(t, err)
	})
}

func TestSlowLogHook(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.NewTestCtxLogger("redis")

	client, err := NewClient(context.Background(), Config{
		Addr:          mr.Addr(),
		SlowThreshold: time.Nanosecond,
	}, log.CtxZapLogger)
	require.NoError(t, err)
	defer client.Close()

	log.Clear()
	_ = client.Get(context.Background(), "missing").Err()

	assert.True(t, log.HasLog("warn", "redis command slow"))
	assert.False(t, log.HasLog("warn", "redis command failed"))
}
