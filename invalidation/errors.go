package invalidation

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
)

// 模块码
const (
	ModuleCode = 71
)

// 错误码定义：71xxxx
const (
	ErrCodeRuleInvalid         = 1
	ErrCodeRuleCondition       = 2
	ErrCodeConfigInvalid       = 3
	ErrCodeRelationshipInvalid = 4
	ErrCodeEngineClosed        = 5
	ErrCodeEventInvalid        = 6
)

var (
	// ErrRuleInvalid 规则定义错误，注册时立即失败
	ErrRuleInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeRuleInvalid,
		"invalidation", "error.invalidation.rule_invalid", "失效规则无效",
		http.StatusBadRequest,
	))

	// ErrRuleCondition 规则条件执行异常，该规则被跳过
	ErrRuleCondition = errcode.Register(errcode.New(
		ModuleCode, ErrCodeRuleCondition,
		"invalidation", "error.invalidation.rule_condition", "失效规则条件执行失败",
	))

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"invalidation", "error.invalidation.config_invalid", "失效配置无效",
	))

	// ErrRelationshipInvalid 数据关系定义错误
	ErrRelationshipInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeRelationshipInvalid,
		"invalidation", "error.invalidation.relationship_invalid", "数据关系无效",
		http.StatusBadRequest,
	))

	// ErrEngineClosed 引擎已关闭
	ErrEngineClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeEngineClosed,
		"invalidation", "error.invalidation.engine_closed", "失效引擎已关闭",
		http.StatusServiceUnavailable,
	))

	// ErrEventInvalid 写事件缺少资源类型、资源 ID 或操作
	ErrEventInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeEventInvalid,
		"invalidation", "error.invalidation.event_invalid", "写事件无效",
		http.StatusBadRequest,
	))
)
