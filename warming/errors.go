package warming

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
)

// 模块码
const (
	ModuleCode = 73
)

// 错误码定义：73xxxx
const (
	ErrCodeTaskInvalid      = 1
	ErrCodeTaskNotFound     = 2
	ErrCodeTemplateInvalid  = 3
	ErrCodeConfigInvalid    = 4
	ErrCodeEngineClosed     = 5
	ErrCodeComputeFailed    = 6
	ErrCodeTemplateNotFound = 7
)

var (
	// ErrTaskInvalid 预热任务定义错误
	ErrTaskInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeTaskInvalid,
		"warming", "error.warming.task_invalid", "预热任务无效",
		http.StatusBadRequest,
	))

	// ErrTaskNotFound 预热任务不存在
	ErrTaskNotFound = errcode.Register(errcode.New(
		ModuleCode, ErrCodeTaskNotFound,
		"warming", "error.warming.task_not_found", "预热任务不存在",
		http.StatusNotFound,
	))

	// ErrTemplateInvalid 用户预热模板无效
	ErrTemplateInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeTemplateInvalid,
		"warming", "error.warming.template_invalid", "用户预热模板无效",
		http.StatusBadRequest,
	))

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"warming", "error.warming.config_invalid", "预热配置无效",
	))

	// ErrEngineClosed 引擎已关闭
	ErrEngineClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeEngineClosed,
		"warming", "error.warming.engine_closed", "预热引擎已关闭",
		http.StatusServiceUnavailable,
	))

	// ErrComputeFailed 任务计算失败，只影响该任务
	ErrComputeFailed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeComputeFailed,
		"warming", "error.warming.compute_failed", "预热任务计算失败",
	))

	// ErrTemplateNotFound 用户预热模板不存在
	ErrTemplateNotFound = errcode.Register(errcode.New(
		ModuleCode, ErrCodeTemplateNotFound,
		"warming", "error.warming.template_not_found", "用户预热模板不存在",
		http.StatusNotFound,
	))
)
