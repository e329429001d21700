package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	tl := NewTestCtxLogger("cache_sql")
	gl := NewGormLogger(tl.CtxZapLogger, GormLoggerConfig{SlowThreshold: time.Millisecond, LogLevel: gormlogger.Warn})
	ctx := context.Background()

	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("locked"))
	assert.True(t, tl.HasLog("ERROR", "durable sql failed"))

	gl.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.True(t, tl.HasLog("WARN", "durable sql slow"))

	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, tl.CountLogs("ERROR"))

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("x"))
	assert.Equal(t, 1, tl.CountLogs("ERROR"))
}

func TestSanitizeSQL_ShortensPayloads(t *testing.T) {
	payload := strings.Repeat("a", 100)
	out := sanitizeSQL("INSERT INTO cache_entries VALUES ('k1','" + payload + "')")

	assert.Contains(t, out, "'k1'")
	assert.Contains(t, out, "'<100 bytes>'")
	assert.NotContains(t, out, payload)
}
