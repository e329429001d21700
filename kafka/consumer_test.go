package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/component"
	"github.com/KOMKZ/go-yogan-cache/config"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/invalidation"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// fakeGroup feeds one claim per Consume call from msgs
type fakeGroup struct {
	msgs     chan *sarama.ConsumerMessage
	errs     chan error
	failures atomic.Int64 // Consume calls left that fail
	calls    atomic.Int64
	closed   atomic.Bool

	mu     sync.Mutex
	marked []int64
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{
		msgs: make(chan *sarama.ConsumerMessage, 16),
		errs: make(chan error, 1),
	}
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, h sarama.ConsumerGroupHandler) error {
	g.calls.Inc()
	if g.failures.Load() > 0 {
		g.failures.Dec()
		return errors.New("broker not available")
	}
	sess := &fakeSession{ctx: ctx, group: g}
	if err := h.Setup(sess); err != nil {
		return err
	}
	err := h.ConsumeClaim(sess, &fakeClaim{msgs: g.msgs})
	_ = h.Cleanup(sess)
	return err
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }
func (g *fakeGroup) Close() error { g.closed.Store(true); return nil }
func (g *fakeGroup) Pause(map[string][]int32) {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll() {}
func (g *fakeGroup) ResumeAll() {}
func (g *fakeGroup) send(offset int64, value []byte) { g.msgs <- message(offset, value) }
func (g *fakeGroup) mark(msg *sarama.ConsumerMessage) {
	g.mu.Lock()
	g.marked = append(g.marked, msg.Offset)
	g.mu.Unlock()
}

func (g *fakeGroup) markedOffsets() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.marked...)
}

func message(offset int64, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "cache.write-events",
		Offset:    offset,
		Value:     value,
		Timestamp: time.Now(),
		Headers:   []*sarama.RecordHeader{{Key: []byte("source"), Value: []byte("orders-svc")}},
	}
}

type fakeSession struct {
	ctx   context.Context
	group *fakeGroup
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "member-1" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) { s.group.mark(msg) }
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "cache.write-events" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventJSON(t *testing.T, ev invalidation.WriteEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestConsumerGroup_MarksEveryMessage(t *testing.T) {
	g := newFakeGroup()
	log := logger.NewTestCtxLogger("kafka")
	c := newConsumerGroup(g, ConsumerConfig{GroupID: "g", Topics: []string{"cache.write-events"}, RetryBackoff: 10 * time.Millisecond}, log.CtxZapLogger)

	var headers sync.Map
	handler := func(_ context.Context, msg *ConsumedMessage) error {
		headers.Store(msg.Offset, msg.Headers["source"])
		if msg.Offset == 1 {
			return errors.New("tier unavailable")
		}
		return nil
	}
	require.NoError(t, c.Start(context.Background(), handler))
	assert.Error(t, c.Start(context.Background(), handler), "already running")

	for i := int64(0); i < 3; i++ {
		g.send(i, []byte("{}"))
	}
	assert.Eventually(t, func() bool { return len(g.markedOffsets()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{0, 1, 2}, g.markedOffsets(), "failed message is marked too")

	src, _ := headers.Load(int64(2))
	assert.Equal(t, "orders-svc", src)

	stats := c.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, int64(3), stats.Consumed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, "tier unavailable", stats.LastError)
	assert.True(t, log.HasLog("error", "handle message failed"))

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.True(t, g.closed.Load())
	assert.False(t, c.IsRunning())
}

func TestConsumerGroup_RejoinsAfterConsumeError(t *testing.T) {
	g := newFakeGroup()
	g.failures.Store(2)
	c := newConsumerGroup(g, ConsumerConfig{GroupID: "g", Topics: []string{"t"}, RetryBackoff: 5 * time.Millisecond}, logger.NewNopLogger())

	var handled atomic.Int64
	require.NoError(t, c.Start(context.Background(), func(context.Context, *ConsumedMessage) error {
		handled.Inc()
		return nil
	}))
	defer c.Stop()

	g.send(0, []byte("{}"))
	assert.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, g.calls.Load(), int64(3))
	assert.Equal(t, "broker not available", c.Stats().LastError)
}

func TestConsumerGroup_StartRequiresHandler(t *testing.T) {
	c := newConsumerGroup(newFakeGroup(), ConsumerConfig{}, logger.NewNopLogger())
	assert.Error(t, c.Start(context.Background(), nil))
	assert.False(t, c.IsRunning())
}

func TestWriteEventHandler(t *testing.T) {
	ctx := context.Background()
	coord := cache.NewCoordinator(cache.Config{MaxEntries: 10})
	inv, err := invalidation.NewEngine(invalidation.Config{Rules: []invalidation.RuleConfig{{
		Name:           "order-lists",
		TriggerTags:    []string{"order"},
		InvalidateTags: []string{"orders:{id}"},
	}}}, coord)
	require.NoError(t, err)
	defer inv.Close(ctx)

	log := logger.NewTestCtxLogger("kafka")
	handle := NewWriteEventHandler(inv, log.CtxZapLogger)

	require.NoError(t, coord.Set(ctx, "orders:list", []byte("[]"), time.Minute, "orders:5"))
	err = handle(ctx, &ConsumedMessage{Value: eventJSON(t, invalidation.WriteEvent{
		ResourceType: "order", ResourceID: "5", Operation: "create",
	})})
	require.NoError(t, err)
	_, ok := coord.Get(ctx, "orders:list")
	assert.False(t, ok)

	assert.NoError(t, handle(ctx, &ConsumedMessage{Topic: "t", Value: []byte("not json")}))
	assert.True(t, log.HasLog("warn", "write event decode failed"))

	err = handle(ctx, &ConsumedMessage{Value: []byte(`{"resource_type":"order"}`)})
	assert.True(t, errors.Is(err, invalidation.ErrEventInvalid))
}

func TestComponent_ConsumesIntoEngine(t *testing.T) {
	ctx := context.Background()
	loader := config.NewLoader()
	loader.AddSource(config.NewMapSource("test", 1, map[string]interface{}{
		"durable.driver":        "memory",
		"warming.warm_on_start": false,
		"invalidation.rules": []interface{}{map[string]interface{}{
			"name":            "user-profile",
			"trigger_tags":    []string{"user"},
			"invalidate_tags": []string{"profile:{id}"},
		}},
		"kafka.enabled":         true,
		"kafka.brokers":         []string{"kafka-1:9092"},
		"kafka.consumer.topics": []string{"cache.write-events"},
	}))
	require.NoError(t, loader.Load())

	g := newFakeGroup()
	cacheComp := engine.NewComponent()
	kafkaComp := NewComponent(cacheComp, logger.NewNopLogger())
	var connected Config
	kafkaComp.newGroup = func(cfg Config) (sarama.ConsumerGroup, error) {
		connected = cfg
		return g, nil
	}

	reg := component.NewRegistry()
	require.NoError(t, reg.Register(kafkaComp))
	require.NoError(t, reg.Register(cacheComp))
	require.NoError(t, reg.Init(ctx, loader))
	require.NoError(t, reg.Start(ctx))
	assert.Equal(t, []string{"kafka-1:9092"}, connected.Brokers)
	assert.Equal(t, "cachengine-invalidation", connected.Consumer.GroupID)

	coord := cacheComp.Engine().Coordinator()
	require.NoError(t, coord.Set(ctx, "profile:3", []byte("p"), time.Minute, "profile:3"))
	g.send(0, eventJSON(t, invalidation.WriteEvent{ResourceType: "user", ResourceID: "3", Operation: "update"}))
	assert.Eventually(t, func() bool {
		_, ok := coord.Get(ctx, "profile:3")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	var kafkaChecker component.HealthChecker
	for _, hc := range reg.HealthCheckers() {
		if hc.Name() == component.ComponentKafka {
			kafkaChecker = hc
		}
	}
	require.NotNil(t, kafkaChecker)
	assert.NoError(t, kafkaChecker.Check(ctx))

	require.NoError(t, reg.Stop(ctx))
	assert.True(t, g.closed.Load())
	assert.Error(t, kafkaChecker.Check(ctx))
}

func TestComponent_Disabled(t *testing.T) {
	ctx := context.Background()
	loader := config.NewLoader()
	require.NoError(t, loader.Load())

	comp := NewComponent(engine.NewComponent(), nil)
	comp.newGroup = func(Config) (sarama.ConsumerGroup, error) {
		t.Fatal("disabled consumer must not connect")
		return nil, nil
	}
	require.NoError(t, comp.Init(ctx, loader))
	require.NoError(t, comp.Start(ctx))
	assert.Nil(t, comp.Consumer())
	assert.Nil(t, comp.GetHealthChecker())
	require.NoError(t, comp.Stop(ctx))
}
