package cache

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-cache/errcode"
)

// 模块码
const (
	ModuleCode = 70
)

// 错误码定义：70xxxx
const (
	ErrCodeCacheMiss     = 1
	ErrCodeCompute       = 2
	ErrCodeDurableTier   = 3
	ErrCodeSerialize     = 4
	ErrCodeDeserialize   = 5
	ErrCodeConfigInvalid = 6
	ErrCodeKeyInvalid    = 7
)

var (
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errcode.Register(errcode.New(
		ModuleCode, ErrCodeCacheMiss,
		"cache", "error.cache.miss", "缓存未命中",
		http.StatusNotFound,
	))

	// ErrCompute 计算函数失败或超时，结果不会被缓存
	ErrCompute = errcode.Register(errcode.New(
		ModuleCode, ErrCodeCompute,
		"cache", "error.cache.compute", "缓存值计算失败",
		http.StatusBadGateway,
	))

	// ErrDurableTier 持久层不可用。内存层命中时不会向上传播
	ErrDurableTier = errcode.Register(errcode.New(
		ModuleCode, ErrCodeDurableTier,
		"cache", "error.cache.durable_tier", "持久层操作失败",
		http.StatusServiceUnavailable,
	))

	// ErrSerialize 序列化错误
	ErrSerialize = errcode.Register(errcode.New(
		ModuleCode, ErrCodeSerialize,
		"cache", "error.cache.serialize", "序列化失败",
	))

	// ErrDeserialize 反序列化错误
	ErrDeserialize = errcode.Register(errcode.New(
		ModuleCode, ErrCodeDeserialize,
		"cache", "error.cache.deserialize", "反序列化失败",
	))

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"cache", "error.cache.config_invalid", "缓存配置无效",
	))

	// ErrKeyInvalid 缓存键为空
	ErrKeyInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeKeyInvalid,
		"cache", "error.cache.key_invalid", "缓存键无效",
		http.StatusBadRequest,
	))
)
