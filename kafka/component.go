package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.uber.org/zap"
)

// Component Kafka 写事件组件
//
// 消费写事件并交给缓存引擎的失效引擎
// 依赖：cache
type Component struct {
	cache    *engine.Component
	logger   *logger.CtxZapLogger
	cfg      Config
	consumer *ConsumerGroup

	// newGroup connects the sarama group; replaced in tests
	newGroup func(Config) (sarama.ConsumerGroup, error)
}

// NewComponent 创建 Kafka 组件
func NewComponent(cache *engine.Component, log *logger.CtxZapLogger) *Component {
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	return &Component{cache: cache, logger: log, newGroup: connectGroup}
}

func connectGroup(cfg Config) (sarama.ConsumerGroup, error) {
	saramaCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	return sarama.NewConsumerGroup(cfg.Brokers, cfg.Consumer.GroupID, saramaCfg)
}

func (c *Component) Name() string {
	return component.ComponentKafka
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentCache}
}

// Init 读取 kafka.* 配置；未启用时跳过
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	cfg, err := LoadConfig(loader)
	if err != nil {
		return err
	}
	c.cfg = cfg
	if !cfg.Enabled {
		c.logger.DebugCtx(ctx, "Kafka 写事件消费未启用，跳过初始化")
	}
	return nil
}

// Start 连接 Kafka 并开始消费
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	e := c.cache.Engine()
	if e == nil {
		return errors.New("缓存引擎未初始化")
	}

	group, err := c.newGroup(c.cfg)
	if err != nil {
		return fmt.Errorf("连接 Kafka 失败: %w", err)
	}
	c.consumer = newConsumerGroup(group, c.cfg.Consumer, c.logger)
	if err := c.consumer.Start(ctx, NewWriteEventHandler(e.Invalidation(), c.logger)); err != nil {
		_ = group.Close()
		c.consumer = nil
		return err
	}
	c.logger.InfoCtx(ctx, "✅ Kafka 组件启动完成", zap.Strings("brokers", c.cfg.Brokers))
	return nil
}

// Stop 停止消费并关闭连接
func (c *Component) Stop(ctx context.Context) error {
	if c.consumer == nil {
		return nil
	}
	if err := c.consumer.Stop(); err != nil {
		return fmt.Errorf("关闭 Kafka 连接失败: %w", err)
	}
	c.logger.InfoCtx(ctx, "✅ Kafka 组件已停止")
	return nil
}

// Consumer returns the running consumer; nil when disabled
func (c *Component) Consumer() *ConsumerGroup {
	return c.consumer
}

// GetHealthChecker 获取健康检查器
func (c *Component) GetHealthChecker() component.HealthChecker {
	if !c.cfg.Enabled {
		return nil
	}
	return healthChecker{c}
}

type healthChecker struct {
	c *Component
}

func (healthChecker) Name() string {
	return component.ComponentKafka
}

// Check 消费者未运行时不健康
func (h healthChecker) Check(context.Context) error {
	if h.c.consumer == nil || !h.c.consumer.IsRunning() {
		return errors.New("kafka consumer is not running")
	}
	return nil
}
