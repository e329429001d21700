package scheduler

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
)

// 模块码
const (
	ModuleCode = 75
)

// 错误码定义：75xxxx
const (
	ErrCodeJobInvalid    = 1
	ErrCodeJobNotFound   = 2
	ErrCodeConfigInvalid = 3
	ErrCodeStopTimeout   = 4
)

var (
	// ErrJobInvalid 任务定义错误
	ErrJobInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeJobInvalid,
		"scheduler", "error.scheduler.job_invalid", "调度任务无效",
		http.StatusBadRequest,
	))

	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errcode.Register(errcode.New(
		ModuleCode, ErrCodeJobNotFound,
		"scheduler", "error.scheduler.job_not_found", "调度任务不存在",
		http.StatusNotFound,
	))

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"scheduler", "error.scheduler.config_invalid", "调度配置无效",
	))

	// ErrStopTimeout 关闭超时
	ErrStopTimeout = errcode.Register(errcode.New(
		ModuleCode, ErrCodeStopTimeout,
		"scheduler", "error.scheduler.stop_timeout", "调度器关闭超时",
	))
)
