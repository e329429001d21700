package metrics

import (
	"time"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert a threshold breach that stays active until acknowledged
type Alert struct {
	ID        string     `json:"id"`
	Severity  Severity   `json:"severity"`
	Layer     string     `json:"layer"`
	Metric    MetricType `json:"metric"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	RaisedAt  time.Time  `json:"raised_at"`
}

func alertKey(layer string, metric MetricType) string {
	return layer + "|" + string(metric)
}

// AlertHandler is told about every newly raised alert
type AlertHandler func(Alert)
