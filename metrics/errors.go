package metrics

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
)

// 模块码
const (
	ModuleCode = 72
)

// 错误码定义：72xxxx
const (
	ErrCodeAlertNotFound = 1
	ErrCodeConfigInvalid = 2
)

var (
	// ErrAlertNotFound 告警不存在或已确认
	ErrAlertNotFound = errcode.Register(errcode.New(
		ModuleCode, ErrCodeAlertNotFound,
		"metrics", "error.metrics.alert_not_found", "告警不存在",
		http.StatusNotFound,
	))

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"metrics", "error.metrics.config_invalid", "指标配置无效",
	))
)
