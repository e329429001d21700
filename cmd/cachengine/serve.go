package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/flagx"
	"github.com/KOMKZ/go-yogan-cache/httpx"
	"github.com/KOMKZ/go-yogan-cache/kafka"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveOptions flags of `cachengine serve`
type serveOptions struct {
	Addr        string        `flag:"addr" usage:"HTTP 监听地址，覆盖 http.addr"`
	Kafka       bool          `flag:"kafka" usage:"消费 Kafka 写事件，覆盖 kafka.enabled"`
	StopTimeout time.Duration `flag:"stop-timeout" default:"30s" usage:"优雅关闭超时"`
}

var serveBindings = map[string]string{
	"addr":  "http.addr",
	"kafka": "kafka.enabled",
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动缓存引擎及其 HTTP / Kafka 接口",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}
	if err := flagx.BindFlags(cmd, &serveOptions{}); err != nil {
		panic(err)
	}
	return cmd
}

// runServe blocks until ctx is done, then stops every component
func runServe(ctx context.Context, cmd *cobra.Command) error {
	root, err := parseRoot(cmd)
	if err != nil {
		return err
	}
	var opts serveOptions
	if err := flagx.ParseFlags(cmd, &opts); err != nil {
		return err
	}

	loader, err := buildLoader(root.configOptions(cmd.Flags(), serveBindings, nil))
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	cfg, err := engine.LoadConfig(loader)
	if err != nil {
		return err
	}
	loggers := logger.InitManager(cfg.Logger)
	defer loggers.CloseAll()
	log := loggers.GetLogger("cachengine")

	cacheComp := engine.NewComponent(engine.WithLoggerManager(loggers))
	reg := component.NewRegistry()
	for _, c := range []component.Component{
		cacheComp,
		httpx.NewComponent(cacheComp, loggers.GetLogger("httpx")),
		kafka.NewComponent(cacheComp, loggers.GetLogger("kafka")),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	if err := reg.Init(ctx, loader); err != nil {
		_ = cacheComp.Stop(context.Background())
		return fmt.Errorf("初始化组件失败: %w", err)
	}
	if err := reg.Start(ctx); err != nil {
		// the engine is closed even when it never started
		_ = cacheComp.Stop(context.Background())
		return fmt.Errorf("启动组件失败: %w", err)
	}
	log.InfoCtx(ctx, "✅ cachengine started", zap.Strings("files", loader.LoadedFiles()))

	<-ctx.Done()
	log.InfoCtx(ctx, "📥 收到退出信号，开始优雅关闭")

	stopCtx, cancel := context.WithTimeout(context.Background(), opts.StopTimeout)
	defer cancel()
	if err := reg.Stop(stopCtx); err != nil {
		log.ErrorCtx(stopCtx, "关闭组件失败", zap.Error(err))
		return err
	}
	log.InfoCtx(stopCtx, "✅ cachengine stopped")
	return nil
}
