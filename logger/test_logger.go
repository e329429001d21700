package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestCtxLogger is a CtxZapLogger that records into memory for assertions.
//
//	tl := logger.NewTestCtxLogger("cache")
//	c := cache.NewCoordinator(cfg, store, nil, tl.CtxZapLogger)
//	assert.True(t, tl.HasLog("WARN", "durable tier get failed"))
type TestCtxLogger struct {
	*CtxZapLogger
	observed *observer.ObservedLogs
}

// NewTestCtxLogger records every level from debug up
func NewTestCtxLogger(module string) *TestCtxLogger {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core).With(zap.String("module", module))
	return &TestCtxLogger{CtxZapLogger: NewCtxZapLogger(module, base), observed: logs}
}

// HasLog reports whether a message was logged at level (INFO, WARN, ...)
func (t *TestCtxLogger) HasLog(level, message string) bool {
	for _, e := range t.observed.All() {
		if matchLevel(e, level) && e.Message == message {
			return true
		}
	}
	return false
}

// HasLogWithField also requires a context field with the given value
func (t *TestCtxLogger) HasLogWithField(level, message, key string, value interface{}) bool {
	for _, e := range t.observed.All() {
		if matchLevel(e, level) && e.Message == message {
			if v, ok := e.ContextMap()[key]; ok && v == value {
				return true
			}
		}
	}
	return false
}

// CountLogs counts entries at level
func (t *TestCtxLogger) CountLogs(level string) int {
	n := 0
	for _, e := range t.observed.All() {
		if matchLevel(e, level) {
			n++
		}
	}
	return n
}

// Messages lists messages at level in order
func (t *TestCtxLogger) Messages(level string) []string {
	var out []string
	for _, e := range t.observed.All() {
		if matchLevel(e, level) {
			out = append(out, e.Message)
		}
	}
	return out
}

// Clear drops everything recorded so far
func (t *TestCtxLogger) Clear() {
	t.observed.TakeAll()
}

func matchLevel(e observer.LoggedEntry, level string) bool {
	return strings.EqualFold(e.Level.String(), level)
}
