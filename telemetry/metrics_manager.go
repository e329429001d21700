package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsManager Metrics 管理器
type MetricsManager struct {
	meterProvider *sdkmetric.MeterProvider
	config        MetricsConfig
	enabled       bool
}

// NewMetricsManager 创建 Metrics 管理器
func NewMetricsManager(cfg Config, res *resource.Resource) (*MetricsManager, error) {
	if !cfg.Enabled || !cfg.Metrics.Enabled {
		return &MetricsManager{config: cfg.Metrics}, nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch cfg.Exporter.Type {
	case "otlp":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Exporter.Endpoint),
			otlpmetricgrpc.WithTimeout(cfg.Exporter.Timeout),
		}
		if cfg.Exporter.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Exporter.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Exporter.Headers))
		}
		exporter, err = otlpmetricgrpc.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
	case "noop":
		return &MetricsManager{config: cfg.Metrics}, nil
	default:
		return nil, fmt.Errorf("unsupported metrics exporter type: %s", cfg.Exporter.Type)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(cfg.Metrics.ExportInterval),
				sdkmetric.WithTimeout(cfg.Metrics.ExportTimeout),
			),
		),
	)
	otel.SetMeterProvider(mp)

	return &MetricsManager{
		meterProvider: mp,
		config:        cfg.Metrics,
		enabled:       true,
	}, nil
}

// Shutdown 关闭 Metrics
func (m *MetricsManager) Shutdown(ctx context.Context) error {
	if m.meterProvider != nil {
		return m.meterProvider.Shutdown(ctx)
	}
	return nil
}

// GetMeter 获取 Meter
func (m *MetricsManager) GetMeter(name string) metric.Meter {
	if m.meterProvider == nil {
		return noop.NewMeterProvider().Meter(name)
	}
	return m.meterProvider.Meter(name)
}

// IsEnabled 是否启用
func (m *MetricsManager) IsEnabled() bool {
	return m.enabled
}

// GetConfig 获取配置
func (m *MetricsManager) GetConfig() MetricsConfig {
	return m.config
}
