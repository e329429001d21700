// Package health 提供统一的健康检查能力
package health

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/KOMKZ/go-yogan-cache/component"
)

// Status 健康状态枚举
type Status string

const (
	// StatusHealthy 健康
	StatusHealthy Status = "healthy"
	// StatusDegraded 降级（部分功能不可用）
	StatusDegraded Status = "degraded"
	// StatusUnhealthy 不健康
	StatusUnhealthy Status = "unhealthy"
)

// Checker 是 component.HealthChecker 的别名，方便使用
type Checker = component.HealthChecker

// DegradedError marks a check failure that leaves the engine serving
type DegradedError struct {
	Err error
}

func (e *DegradedError) Error() string { return e.Err.Error() }

func (e *DegradedError) Unwrap() error { return e.Err }

// Degraded wraps err so the aggregator reports degraded instead of unhealthy
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &DegradedError{Err: err}
}

// IsDegraded reports whether err was produced by Degraded
func IsDegraded(err error) bool {
	var d *DegradedError
	return errors.As(err, &d)
}

// CheckResult 单个检查项的结果
type CheckResult struct {
	Name      string        `json:"name"`               // 检查项名称
	Status    Status        `json:"status"`             // 健康状态
	Message   string        `json:"message,omitempty"`  // 状态消息
	Error     string        `json:"error,omitempty"`    // 错误信息
	Timestamp time.Time     `json:"timestamp"`          // 检查时间
	Duration  time.Duration `json:"duration,omitempty"` // 检查耗时
}

// Response 健康检查响应
type Response struct {
	Status    Status                 `json:"status"`             // 整体健康状态
	Timestamp time.Time              `json:"timestamp"`          // 检查时间
	Duration  time.Duration          `json:"duration"`           // 总检查耗时
	Checks    map[string]CheckResult `json:"checks"`             // 各检查项结果
	Metadata  map[string]interface{} `json:"metadata,omitempty"` // 元数据
}

// IsHealthy 判断整体是否健康
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// IsDegraded 判断是否降级
func (r *Response) IsDegraded() bool {
	return r.Status == StatusDegraded
}

// HTTPStatus maps the status for /healthz: a degraded engine still serves
// reads from memory, so only unhealthy answers 503
func (r *Response) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Unhealthy returns the names of the unhealthy checks, sorted
func (r *Response) Unhealthy() []string {
	var names []string
	for name, c := range r.Checks {
		if c.Status == StatusUnhealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
