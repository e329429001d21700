package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one CtxZapLogger per module and the file writers behind them
type Manager struct {
	config  ManagerConfig
	loggers map[string]*CtxZapLogger
	writers map[string][]*lumberjack.Logger
	mu      sync.RWMutex
}

var (
	globalManager *Manager
	globalMu      sync.RWMutex
)

// NewManager creates an independent manager; zero fields get defaults
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		config:  cfg,
		loggers: make(map[string]*CtxZapLogger),
		writers: make(map[string][]*lumberjack.Logger),
	}
}

// InitManager installs the process-wide manager used by GetLogger.
// The previous manager, if any, is closed.
func InitManager(cfg ManagerConfig) *Manager {
	m := NewManager(cfg)
	globalMu.Lock()
	prev := globalManager
	globalManager = m
	globalMu.Unlock()
	if prev != nil {
		prev.CloseAll()
	}
	return m
}

// Config returns the effective configuration
func (m *Manager) Config() ManagerConfig {
	return m.config
}

// GetLogger returns the module logger, creating it on first use
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	base := m.build(module).
		With(zap.String("module", module)).
		WithOptions(zap.AddCallerSkip(1))
	l := &CtxZapLogger{base: base, module: module, config: &m.config}
	m.loggers[module] = l
	return l
}

func (m *Manager) build(module string) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	var encoder zapcore.Encoder
	if m.config.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	level := ParseLevel(m.config.Level)
	var cores []zapcore.Core

	if m.config.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if m.config.EnableFile {
		info := m.fileWriter(module, m.config.infoFilePath(module))
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(info),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= level && l < zapcore.ErrorLevel
			})))

		errw := m.fileWriter(module, m.config.errorFilePath(module))
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(errw),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.ErrorLevel
			})))
	}

	var opts []zap.Option
	if m.config.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// fileWriter must be called with m.mu held
func (m *Manager) fileWriter(module, path string) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    m.config.MaxSize,
		MaxBackups: m.config.MaxBackups,
		MaxAge:     m.config.MaxAge,
		Compress:   m.config.Compress,
		LocalTime:  true,
	}
	m.writers[module] = append(m.writers[module], w)
	return w
}

// CloseAll flushes every logger and closes the rotated files
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, ws := range m.writers {
		for _, w := range ws {
			_ = w.Close()
		}
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

func global() *Manager {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()
	if m != nil {
		return m
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager == nil {
		globalManager = NewManager(DefaultManagerConfig())
	}
	return globalManager
}

// GetLogger returns a module logger from the process-wide manager
func GetLogger(module string) *CtxZapLogger {
	return global().GetLogger(module)
}

// CloseAll closes the process-wide manager
func CloseAll() {
	global().CloseAll()
}

// InfoCtx logs through the module logger of the process-wide manager
func InfoCtx(ctx context.Context, module, msg string, fields ...zap.Field) {
	GetLogger(module).InfoCtx(ctx, msg, fields...)
}

// DebugCtx logs through the module logger of the process-wide manager
func DebugCtx(ctx context.Context, module, msg string, fields ...zap.Field) {
	GetLogger(module).DebugCtx(ctx, msg, fields...)
}

// WarnCtx logs through the module logger of the process-wide manager
func WarnCtx(ctx context.Context, module, msg string, fields ...zap.Field) {
	GetLogger(module).WarnCtx(ctx, msg, fields...)
}

// ErrorCtx logs through the module logger of the process-wide manager
func ErrorCtx(ctx context.Context, module, msg string, fields ...zap.Field) {
	GetLogger(module).ErrorCtx(ctx, msg, fields...)
}
