package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcChecker struct {
	name  string
	check func(ctx context.Context) error
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.check(ctx) }

func returning(name string, err error) funcChecker {
	return funcChecker{name: name, check: func(context.Context) error { return err }}
}

var errTierDown = errors.New("dial tcp 127.0.0.1:6379: connection refused")

func TestAggregator_RollUp(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{"no checkers", nil, StatusHealthy},
		{"all healthy", []Checker{returning("memory", nil), returning("durable:redis", nil)}, StatusHealthy},
		{"durable degraded", []Checker{returning("memory", nil), returning("durable:redis", Degraded(errTierDown))}, StatusDegraded},
		{"memory unhealthy wins", []Checker{returning("memory", errors.New("full")), returning("durable:redis", Degraded(errTierDown))}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(time.Second)
			agg.Register(tt.checkers...)
			resp := agg.Check(ctx)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestAggregator_CheckResults(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(
		returning("memory", nil),
		returning("durable:gorm", Degraded(errTierDown)),
	)
	resp := agg.Check(context.Background())

	mem := resp.Checks["memory"]
	assert.Equal(t, StatusHealthy, mem.Status)
	assert.Equal(t, "OK", mem.Message)
	assert.Empty(t, mem.Error)

	dur := resp.Checks["durable:gorm"]
	assert.Equal(t, StatusDegraded, dur.Status)
	assert.Equal(t, errTierDown.Error(), dur.Error, "degraded wrapper keeps the cause text")
	assert.True(t, resp.IsDegraded())
	assert.False(t, resp.IsHealthy())
}

func TestAggregator_RegisterSkipsNil(t *testing.T) {
	agg := NewAggregator(0)
	assert.Equal(t, 5*time.Second, agg.timeout)

	var absent Checker
	agg.Register(absent, NewDurableChecker(nil), NewMemoryChecker(stubStats{{Layer: cache.LayerMemory, Available: true, Capacity: 10}}, 0.98))
	resp := agg.Check(context.Background())
	require.Len(t, resp.Checks, 1)
	assert.Contains(t, resp.Checks, "memory")
}

func TestAggregator_PanicAndTimeout(t *testing.T) {
	agg := NewAggregator(50 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	agg.Register(
		funcChecker{name: "panicky", check: func(context.Context) error { panic("nil tier") }},
		funcChecker{name: "stuck", check: func(context.Context) error {
			<-release
			return nil
		}},
		returning("memory", nil),
	)

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "nil tier", resp.Checks["panicky"].Error)
	assert.Equal(t, "Health check timed out", resp.Checks["stuck"].Message)
	assert.Equal(t, StatusHealthy, resp.Checks["memory"].Status)
}

func TestAggregator_MetadataIsCopied(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.SetMetadata("service", "cachengine")
	resp := agg.Check(context.Background())
	agg.SetMetadata("service", "changed")

	assert.Equal(t, "cachengine", resp.Metadata["service"])

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"healthy"`)
}

func TestDegraded(t *testing.T) {
	assert.Nil(t, Degraded(nil))
	err := Degraded(errTierDown)
	assert.True(t, IsDegraded(err))
	assert.ErrorIs(t, err, errTierDown)
	assert.False(t, IsDegraded(errTierDown))
}

func TestResponse_HTTPStatusAndUnhealthy(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(returning("durable:redis", Degraded(errTierDown)))
	resp := agg.Check(context.Background())
	assert.Equal(t, 200, resp.HTTPStatus(), "degraded keeps serving")
	assert.Empty(t, resp.Unhealthy())

	agg.Register(returning("memory", errors.New("full")), returning("kafka", errors.New("down")))
	resp = agg.Check(context.Background())
	assert.Equal(t, 503, resp.HTTPStatus())
	assert.Equal(t, []string{"kafka", "memory"}, resp.Unhealthy())
}
