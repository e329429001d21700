package telemetry

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

type stubProvider struct {
	name  string
	meter metric.Meter
	calls int
}

func (p *stubProvider) MetricsName() string { return p.name }

func (p *stubProvider) RegisterMetrics(meter metric.Meter) error {
	p.calls++
	p.meter = meter
	_, err := meter.Int64Counter(p.name + "_total")
	return err
}

func TestConfig_ApplyDefaultsAndValidate(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	assert.Equal(t, "cachengine", cfg.ServiceName)
	assert.Equal(t, "otlp", cfg.Exporter.Type)
	assert.Equal(t, 2048, cfg.Batch.MaxQueueSize)
	require.NoError(t, cfg.Validate())

	cfg.Exporter.Type = "zipkin"
	assert.Error(t, cfg.Validate())

	cfg.Exporter.Type = "stdout"
	cfg.Sampler.Ratio = 1.5
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Config{Exporter: ExporterConfig{Type: "zipkin"}}.Validate(), "disabled config is not validated")
}

func TestManager_StartDisabled(t *testing.T) {
	log := logger.NewTestCtxLogger("telemetry")
	m := NewManager(Config{Enabled: false}, log.CtxZapLogger)

	require.NoError(t, m.Start(context.Background()))
	assert.Nil(t, m.tracerProvider)
	assert.Nil(t, m.GetMetricsManager())
	assert.True(t, log.HasLog("info", "Telemetry disabled"))

	p := &stubProvider{name: "cache"}
	require.NoError(t, m.RegisterMetrics(p, nil))
	assert.Equal(t, 1, p.calls)
	assert.NotNil(t, m.GetTracer("cache"))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartStdout(t *testing.T) {
	cfg := Config{
		Enabled:  true,
		Exporter: ExporterConfig{Type: "stdout"},
		Sampler:  SamplerConfig{Type: "always_on"},
		Batch:    BatchConfig{Enabled: false},
		Metrics:  MetricsConfig{Enabled: true},
	}
	m := NewManager(cfg, logger.NewNopLogger())
	require.NoError(t, m.Start(context.Background()))

	require.NotNil(t, m.tracerProvider)
	require.NotNil(t, m.GetMetricsManager())
	assert.True(t, m.GetMetricsManager().IsEnabled())

	_, span := m.GetTracer("cache").Start(context.Background(), "cache.get")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	p := &stubProvider{name: "warming"}
	require.NoError(t, m.RegisterMetrics(p))
	assert.Equal(t, 1, p.calls)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_NoopExporter(t *testing.T) {
	cfg := Config{
		Enabled:  true,
		Exporter: ExporterConfig{Type: "noop"},
		Sampler:  SamplerConfig{Type: "always_off"},
		Metrics:  MetricsConfig{Enabled: true},
	}
	m := NewManager(cfg, logger.NewNopLogger())
	require.NoError(t, m.Start(context.Background()))
	defer m.Shutdown(context.Background())

	assert.False(t, m.GetMetricsManager().IsEnabled())
	_, span := m.GetTracer("cache").Start(context.Background(), "cache.set")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
}

func TestFlattenMap(t *testing.T) {
	out := flattenMap(map[string]interface{}{
		"deployment": map[string]interface{}{"environment": "test"},
		"replicas":   3,
	}, "")
	assert.Equal(t, map[string]string{
		"deployment.environment": "test",
		"replicas":               "3",
	}, out)
}
