// Package telemetry owns the OpenTelemetry tracer and meter providers the
// engine's spans and cache instruments are reported through.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Manager Telemetry Manager
// Manage TracerProvider and MetricsManager
type Manager struct {
	config         Config
	logger         *logger.CtxZapLogger
	tracerProvider *trace.TracerProvider
	metricsManager *MetricsManager
	shutdownFn     func(context.Context) error
	mu             sync.RWMutex
}

// NewManager creates a telemetry manager
func NewManager(config Config, log *logger.CtxZapLogger) *Manager {
	config.ApplyDefaults()
	if log == nil {
		log = logger.GetLogger("telemetry")
	}
	return &Manager{
		config: config,
		logger: log,
	}
}

// Start creates the providers and installs them globally
func (m *Manager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.InfoCtx(ctx, "Telemetry disabled, skipping initialization")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.createResource(ctx)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}

	tp, shutdownFn, err := m.createTracerProvider(ctx, res)
	if err != nil {
		return err
	}
	m.tracerProvider = tp
	m.shutdownFn = shutdownFn
	otel.SetTracerProvider(tp)

	mm, err := NewMetricsManager(m.config, res)
	if err != nil {
		_ = shutdownFn(ctx)
		return err
	}
	m.metricsManager = mm

	m.logger.InfoCtx(ctx, "✅ Telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", mm.IsEnabled()),
	)
	return nil
}

// RegisterMetrics registers each enabled provider on its own meter
func (m *Manager) RegisterMetrics(providers ...component.MetricsProvider) error {
	for _, p := range providers {
		if p == nil {
			continue
		}
		if err := p.RegisterMetrics(m.GetMeter(p.MetricsName())); err != nil {
			return fmt.Errorf("register %s metrics: %w", p.MetricsName(), err)
		}
	}
	return nil
}

// Shutdown flushes and stops both providers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.metricsManager != nil {
		if err := m.metricsManager.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		m.metricsManager = nil
	}
	if m.shutdownFn != nil {
		if err := m.shutdownFn(ctx); err != nil {
			errs = append(errs, err)
		}
		m.shutdownFn = nil
	}
	return errors.Join(errs...)
}

// GetTracer obtain tracer
func (m *Manager) GetTracer(name string) otelTrace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// GetMeter obtain meter; the global (noop until started) provider when metrics are off
func (m *Manager) GetMeter(name string) metric.Meter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.metricsManager == nil {
		return otel.Meter(name)
	}
	return m.metricsManager.GetMeter(name)
}

// GetMetricsManager obtain Metrics manager
func (m *Manager) GetMetricsManager() *MetricsManager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsManager
}

// IsEnabled whether enabled
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// GetConfig Retrieve configuration
func (m *Manager) GetConfig() Config {
	return m.config
}
