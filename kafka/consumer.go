package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ConsumedMessage a message handed to a MessageHandler
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string

	// Timestamp Message timestamp (unix ms)
	Timestamp int64
}

// MessageHandler message processing function.
// An error is logged; the message is marked either way.
type MessageHandler func(ctx context.Context, msg *ConsumedMessage) error

// ConsumerStats message counters
type ConsumerStats struct {
	Running   bool   `json:"running"`
	Consumed  int64  `json:"consumed"`
	Failed    int64  `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// ConsumerGroup runs one handler over a sarama consumer group
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topics  []string
	groupID string
	backoff time.Duration
	logger  *logger.CtxZapLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}

	consumed atomic.Int64
	failed   atomic.Int64
	lastErr  atomic.String
}

// NewConsumerGroup connects a consumer group for cfg.Consumer
func NewConsumerGroup(cfg Config, log *logger.CtxZapLogger) (*ConsumerGroup, error) {
	group, err := connectGroup(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group failed: %w", err)
	}
	return newConsumerGroup(group, cfg.Consumer, log), nil
}

func newConsumerGroup(group sarama.ConsumerGroup, cfg ConsumerConfig, log *logger.CtxZapLogger) *ConsumerGroup {
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	return &ConsumerGroup{
		group:   group,
		topics:  cfg.Topics,
		groupID: cfg.GroupID,
		backoff: cfg.RetryBackoff,
		logger:  log,
	}
}

// Start consumes in the background until Stop.
// The loop does not inherit ctx's cancellation, only its values.
func (c *ConsumerGroup) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("consumer is already running")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.running = true
	c.cancel = cancel
	c.doneCh = make(chan struct{})

	go c.errorLoop(runCtx)
	go c.consumeLoop(runCtx, &groupHandler{consumer: c, handler: handler})

	c.logger.InfoCtx(ctx, "✅ Write event consumer started",
		zap.String("group_id", c.groupID),
		zap.Strings("topics", c.topics))
	return nil
}

// consumeLoop rejoins the group after every rebalance or failed session
func (c *ConsumerGroup) consumeLoop(ctx context.Context, h sarama.ConsumerGroupHandler) {
	defer close(c.doneCh)
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.lastErr.Store(err.Error())
			c.logger.ErrorCtx(ctx, "consume error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *ConsumerGroup) errorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.lastErr.Store(err.Error())
			c.logger.WarnCtx(ctx, "consumer group error", zap.Error(err))
		}
	}
}

// Stop ends the session, waits for the loop and closes the group
func (c *ConsumerGroup) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.cancel()
	done := c.doneCh
	c.mu.Unlock()

	<-done
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close consumer group failed: %w", err)
	}
	c.logger.InfoCtx(context.Background(), "✅ Write event consumer stopped", zap.String("group_id", c.groupID))
	return nil
}

// IsRunning reports whether Start was called without Stop
func (c *ConsumerGroup) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns the message counters
func (c *ConsumerGroup) Stats() ConsumerStats {
	return ConsumerStats{
		Running:   c.IsRunning(),
		Consumed:  c.consumed.Load(),
		Failed:    c.failed.Load(),
		LastError: c.lastErr.Load(),
	}
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	consumer *ConsumerGroup
	handler  MessageHandler
}

func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.consumer.logger.DebugCtx(session.Context(), "consumer session setup",
		zap.Int32("generation_id", session.GenerationID()),
		zap.String("member_id", session.MemberID()))
	return nil
}

func (h *groupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.consumer.logger.DebugCtx(session.Context(), "consumer session cleanup",
		zap.Int32("generation_id", session.GenerationID()))
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consume(ctx, msg)
			session.MarkMessage(msg, "")
		}
	}
}

func (h *groupHandler) consume(ctx context.Context, msg *sarama.ConsumerMessage) {
	consumed := &ConsumedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp.UnixMilli(),
		Headers:   make(map[string]string, len(msg.Headers)),
	}
	for _, header := range msg.Headers {
		if header != nil {
			consumed.Headers[string(header.Key)] = string(header.Value)
		}
	}

	h.consumer.consumed.Inc()
	if err := h.handler(ctx, consumed); err != nil {
		h.consumer.failed.Inc()
		h.consumer.lastErr.Store(err.Error())
		h.consumer.logger.ErrorCtx(ctx, "handle message failed",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}
