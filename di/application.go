package di

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/go-yogan-cache/config"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AppState 应用状态
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

// String 状态字符串表示
func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// DoApplication runs one cache engine inside a samber/do injector
type DoApplication struct {
	injector *do.RootScope

	configOpts ConfigOptions
	engineOpts []engine.Option

	configLoader *config.Loader
	loggers      *logger.Manager
	logger       *logger.CtxZapLogger

	state AppState
	mu    sync.RWMutex

	name    string
	version string

	onSetup    func(*DoApplication) error
	onReady    func(*DoApplication) error
	onShutdown func(context.Context) error
}

// DoAppOption 应用选项函数
type DoAppOption func(*DoApplication)

// WithConfigPath 设置配置路径
func WithConfigPath(path string) DoAppOption {
	return func(app *DoApplication) {
		app.configOpts.ConfigPath = path
	}
}

// WithConfigOptions replaces every config option at once
func WithConfigOptions(opts ConfigOptions) DoAppOption {
	return func(app *DoApplication) {
		app.configOpts = opts
	}
}

// WithEngineOptions passes options through to engine.Build
func WithEngineOptions(opts ...engine.Option) DoAppOption {
	return func(app *DoApplication) {
		app.engineOpts = append(app.engineOpts, opts...)
	}
}

// WithName 设置应用名称
func WithName(name string) DoAppOption {
	return func(app *DoApplication) {
		app.name = name
	}
}

// WithVersion 设置应用版本
func WithVersion(version string) DoAppOption {
	return func(app *DoApplication) {
		app.version = version
	}
}

// WithOnSetup 设置 Setup 回调
func WithOnSetup(fn func(*DoApplication) error) DoAppOption {
	return func(app *DoApplication) {
		app.onSetup = fn
	}
}

// WithOnReady 设置 Ready 回调
func WithOnReady(fn func(*DoApplication) error) DoAppOption {
	return func(app *DoApplication) {
		app.onReady = fn
	}
}

// WithOnShutdown 设置 Shutdown 回调，在引擎关闭之前调用
func WithOnShutdown(fn func(context.Context) error) DoAppOption {
	return func(app *DoApplication) {
		app.onShutdown = fn
	}
}

// NewDoApplication 创建应用实例
func NewDoApplication(opts ...DoAppOption) *DoApplication {
	app := &DoApplication{
		injector:   do.New(),
		configOpts: ConfigOptions{ConfigPath: "./configs"},
		state:      StateInit,
		name:       "cachengine",
		version:    "0.0.1",
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Injector 获取 do.Injector
func (app *DoApplication) Injector() *do.RootScope {
	return app.injector
}

// Logger 获取日志实例
func (app *DoApplication) Logger() *logger.CtxZapLogger {
	return app.logger
}

// ConfigLoader 获取配置加载器
func (app *DoApplication) ConfigLoader() *config.Loader {
	return app.configLoader
}

// Engine builds the engine on first use
func (app *DoApplication) Engine() (*engine.Engine, error) {
	return do.Invoke[*engine.Engine](app.injector)
}

// State 获取当前状态
func (app *DoApplication) State() AppState {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.state
}

func (app *DoApplication) setState(state AppState) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.state = state
}

// Setup 初始化阶段
// 1. 注册 Provider
// 2. 加载配置
// 3. 初始化日志
func (app *DoApplication) Setup() error {
	app.setState(StateSetup)

	RegisterProviders(app.injector, app.configOpts, app.engineOpts...)
	do.Provide(app.injector, ProvideCtxLogger(app.name))

	loader, err := do.Invoke[*config.Loader](app.injector)
	if err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	app.configLoader = loader

	mgr, err := do.Invoke[*logger.Manager](app.injector)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	app.loggers = mgr

	appLogger, err := do.Invoke[*logger.CtxZapLogger](app.injector)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	app.logger = appLogger

	app.logger.Info("🔧 应用初始化中...",
		zap.String("name", app.name),
		zap.String("version", app.version),
		zap.String("config_path", app.configOpts.ConfigPath),
	)

	if app.onSetup != nil {
		if err := app.onSetup(app); err != nil {
			return fmt.Errorf("setup 回调失败: %w", err)
		}
	}
	return nil
}

// Start builds and starts the engine
func (app *DoApplication) Start(ctx context.Context) error {
	e, err := app.Engine()
	if err != nil {
		return fmt.Errorf("创建缓存引擎失败: %w", err)
	}
	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("启动缓存引擎失败: %w", err)
	}
	app.setState(StateRunning)

	app.logger.Info("✅ 应用启动完成",
		zap.String("name", app.name),
		zap.String("version", app.version),
		zap.String("state", app.State().String()),
	)

	if app.onReady != nil {
		if err := app.onReady(app); err != nil {
			return fmt.Errorf("ready 回调失败: %w", err)
		}
	}
	return nil
}

// Run 运行应用（阻塞等待信号）
func (app *DoApplication) Run() error {
	if err := app.Setup(); err != nil {
		return err
	}
	if err := app.Start(context.Background()); err != nil {
		return err
	}
	app.waitForSignal()
	return nil
}

func (app *DoApplication) waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("📥 收到退出信号", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		app.logger.Error("关闭失败", zap.Error(err))
	}
}

// Shutdown 优雅关闭
// samber/do 按依赖顺序反向关闭，引擎通过 Engine.Shutdown 释放资源
func (app *DoApplication) Shutdown(ctx context.Context) error {
	app.setState(StateStopping)
	app.logger.Info("🔄 开始优雅关闭...")

	if app.onShutdown != nil {
		if err := app.onShutdown(ctx); err != nil {
			app.logger.Warn("shutdown 回调失败", zap.Error(err))
		}
	}

	if err := app.injector.Shutdown(); err != nil {
		app.logger.Warn("injector shutdown 失败", zap.Error(err))
	}

	app.setState(StateStopped)
	app.logger.Info("✅ 应用已关闭")
	if app.loggers != nil {
		app.loggers.CloseAll()
	}
	return nil
}

// HealthCheck runs every instantiated service's health check
func (app *DoApplication) HealthCheck(ctx context.Context) map[string]error {
	return app.injector.HealthCheckWithContext(ctx)
}

// IsHealthy 是否健康
func (app *DoApplication) IsHealthy(ctx context.Context) bool {
	for _, err := range app.HealthCheck(ctx) {
		if err != nil {
			return false
		}
	}
	return true
}
