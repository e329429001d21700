package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerConfig_ApplyDefaultsAndValidate(t *testing.T) {
	var cfg ManagerConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "trace_id", cfg.TraceIDFieldName)
	require.NoError(t, cfg.Validate())

	cfg.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestManager_GetLoggerCachesPerModule(t *testing.T) {
	m := NewManager(ManagerConfig{EnableConsole: false})

	a := m.GetLogger("cache")
	b := m.GetLogger("cache")
	c := m.GetLogger("warming")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "warming", c.Module())
}

func TestManager_FileOutputSplitsByLevel(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerConfig{BaseLogDir: dir, EnableFile: true, Level: "debug"})

	log := m.GetLogger("cache")
	log.Info("entry stored", zap.String("key", "a"))
	log.Error("durable tier down")
	m.CloseAll()

	info, err := os.ReadFile(filepath.Join(dir, "cache", "cache-info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "entry stored")
	assert.NotContains(t, string(info), "durable tier down")

	errLog, err := os.ReadFile(filepath.Join(dir, "cache", "cache-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "durable tier down")
}

func TestTestCtxLogger_RecordsTraceID(t *testing.T) {
	tl := NewTestCtxLogger("cache")
	ctx := WithTraceID(context.Background(), "abc123")

	tl.InfoCtx(ctx, "hit", zap.String("key", "k1"))
	tl.Warn("degraded")

	assert.True(t, tl.HasLog("INFO", "hit"))
	assert.True(t, tl.HasLogWithField("INFO", "hit", "key", "k1"))
	assert.True(t, tl.HasLogWithField("INFO", "hit", "trace_id", "abc123"))
	assert.Equal(t, 1, tl.CountLogs("WARN"))

	tl.Clear()
	assert.Equal(t, 0, tl.CountLogs("INFO"))
}

func TestCtxZapLogger_WithKeepsModule(t *testing.T) {
	tl := NewTestCtxLogger("invalidation")
	child := tl.With(zap.String("rule", "user-session"))

	child.Info("rule fired")

	assert.Equal(t, "invalidation", child.Module())
	assert.True(t, tl.HasLogWithField("INFO", "rule fired", "rule", "user-session"))
}
