package httpx

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const errorLoggingConfigKey = "httpx:error_logging_config"

// errorLoggingConfigInternal 内部配置结构
type errorLoggingConfigInternal struct {
	Enable          bool
	IgnoreStatusMap map[int]bool // 预处理为 map，加速查找
	FullErrorChain  bool
	LogLevel        string
}

// ErrorLoggingMiddleware 注入错误日志配置到 Context
// 使用此中间件后，HandleError 将根据配置决定是否记录日志
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig) gin.HandlerFunc {
	ignoreStatusMap := make(map[int]bool, len(cfg.IgnoreHTTPStatus))
	for _, status := range cfg.IgnoreHTTPStatus {
		ignoreStatusMap[status] = true
	}

	internalCfg := errorLoggingConfigInternal{
		Enable:          cfg.Enable,
		IgnoreStatusMap: ignoreStatusMap,
		FullErrorChain:  cfg.FullErrorChain,
		LogLevel:        cfg.LogLevel,
	}

	return func(c *gin.Context) {
		c.Set(errorLoggingConfigKey, internalCfg)
		c.Next()
	}
}

// getErrorLoggingConfig 从 Context 读取配置
func getErrorLoggingConfig(c *gin.Context) errorLoggingConfigInternal {
	if val, exists := c.Get(errorLoggingConfigKey); exists {
		if cfg, ok := val.(errorLoggingConfigInternal); ok {
			return cfg
		}
	}

	// 默认配置：不记录日志
	return errorLoggingConfigInternal{
		Enable:          false,
		IgnoreStatusMap: make(map[int]bool),
		FullErrorChain:  true,
		LogLevel:        "error",
	}
}

// Recovery turns a handler panic into a 500 Response and logs the stack
func Recovery(log *logger.CtxZapLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.ErrorCtx(c.Request.Context(), "Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
					Code: http.StatusInternalServerError,
					Msg:  fmt.Sprintf("%v", err),
				})
			}
		}()
		c.Next()
	}
}

// RequestLog logs one structured line per request.
// 500+ is logged at error, 400+ at warn, everything else at info.
func RequestLog(log *logger.CtxZapLogger, cfg RequestLogConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorCtx(ctx, "HTTP 请求", fields...)
		case status >= 400:
			log.WarnCtx(ctx, "HTTP 请求", fields...)
		default:
			log.InfoCtx(ctx, "HTTP 请求", fields...)
		}
	}
}
