package component

import "go.opentelemetry.io/otel/metric"

// MetricsProvider is implemented by components that publish otel instruments
type MetricsProvider interface {
	// MetricsName is the short meter name, e.g. "cache"
	MetricsName() string

	// RegisterMetrics creates the component's instruments on meter
	RegisterMetrics(meter metric.Meter) error
}
