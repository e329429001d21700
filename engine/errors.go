package engine

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
)

// 模块码
const (
	ModuleCode = 74
)

// 错误码定义：74xxxx
const (
	ErrCodeConfigInvalid = 1
	ErrCodeBuild         = 2
	ErrCodeShutdown      = 3
	ErrCodeClosed        = 4
	ErrCodeUnhealthy     = 5
)

var (
	// ErrConfigInvalid 引擎配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"engine", "error.engine.config_invalid", "缓存引擎配置无效",
	))

	// ErrBuild 组装引擎失败
	ErrBuild = errcode.Register(errcode.New(
		ModuleCode, ErrCodeBuild,
		"engine", "error.engine.build", "缓存引擎初始化失败",
	))

	// ErrShutdown 关闭时部分组件失败
	ErrShutdown = errcode.Register(errcode.New(
		ModuleCode, ErrCodeShutdown,
		"engine", "error.engine.shutdown", "缓存引擎关闭失败",
	))

	// ErrClosed 引擎已关闭
	ErrClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeClosed,
		"engine", "error.engine.closed", "缓存引擎已关闭",
		http.StatusServiceUnavailable,
	))

	// ErrUnhealthy 健康检查失败
	ErrUnhealthy = errcode.Register(errcode.New(
		ModuleCode, ErrCodeUnhealthy,
		"engine", "error.engine.unhealthy", "缓存引擎不健康",
		http.StatusServiceUnavailable,
	))
)
