package di

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-cache/config"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/samber/do/v2"
	"github.com/spf13/pflag"
)

// ============================================
// 基础组件 Provider（Config, Logger）
// 其他组件都依赖它们
// ============================================

// ConfigOptions 配置组件选项
type ConfigOptions struct {
	ConfigPath   string            // 配置目录路径
	EnvPrefix    string            // 环境变量前缀，为空时不读取环境变量
	Defaults     map[string]any    // 最低优先级的默认值
	Flags        *pflag.FlagSet    // 命令行参数
	FlagBindings map[string]string // flag 名 -> 配置键
}

// RegisterProviders registers the config, logger and engine providers.
// Everything is lazy until first Invoke.
func RegisterProviders(injector do.Injector, opts ConfigOptions, engineOpts ...engine.Option) {
	// Layer 0: Config
	do.Provide(injector, ProvideConfigLoader(opts))

	// Layer 1: Logger
	do.Provide(injector, ProvideLoggerManager)

	// Layer 2: Engine
	do.Provide(injector, ProvideEngineConfig)
	do.Provide(injector, ProvideEngine(engineOpts...))
}

// ProvideConfigLoader 创建 config.Loader 的 Provider，无依赖
func ProvideConfigLoader(opts ConfigOptions) func(do.Injector) (*config.Loader, error) {
	return func(i do.Injector) (*config.Loader, error) {
		if opts.ConfigPath == "" {
			opts.ConfigPath = "./configs"
		}
		return config.NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithEnvPrefix(opts.EnvPrefix).
			WithDefaults(opts.Defaults).
			WithFlags(opts.Flags, opts.FlagBindings).
			Build()
	}
}

// ProvideLoggerManager 创建 logger.Manager 的 Provider
// 依赖：config.Loader（读取 logger 配置段）
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	cfg := logger.DefaultManagerConfig()

	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		// 无配置时使用默认配置
		return logger.NewManager(cfg), nil
	}
	if loader.IsSet("logger") {
		if err := loader.Unmarshal("logger", &cfg); err != nil {
			return nil, fmt.Errorf("解析 logger 配置失败: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("logger 配置无效: %w", err)
	}
	return logger.NewManager(cfg), nil
}

// ProvideCtxLogger 创建命名 CtxZapLogger 的 Provider 工厂
func ProvideCtxLogger(moduleName string) func(do.Injector) (*logger.CtxZapLogger, error) {
	return func(i do.Injector) (*logger.CtxZapLogger, error) {
		mgr, err := do.Invoke[*logger.Manager](i)
		if err != nil {
			// 回退到全局 logger
			return logger.GetLogger(moduleName), nil
		}
		return mgr.GetLogger(moduleName), nil
	}
}

// ProvideEngineConfig reads and validates the engine sections
func ProvideEngineConfig(i do.Injector) (engine.Config, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.LoadConfig(loader)
}

// ProvideEngine builds the engine with per-module loggers. The injector
// shuts it down and health checks it through Engine.Shutdown and
// Engine.HealthCheck.
func ProvideEngine(opts ...engine.Option) func(do.Injector) (*engine.Engine, error) {
	return func(i do.Injector) (*engine.Engine, error) {
		cfg, err := do.Invoke[engine.Config](i)
		if err != nil {
			return nil, err
		}
		mgr, err := do.Invoke[*logger.Manager](i)
		if err != nil {
			return nil, err
		}
		all := append([]engine.Option{engine.WithLoggerManager(mgr)}, opts...)
		return engine.Build(context.Background(), cfg, all...)
	}
}
