package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Aggregator 健康检查聚合器
//
// Checkers run concurrently under one deadline. A checker that panics is
// unhealthy; one still running at the deadline is reported as timed out
// and left to finish on its own.
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
	metadata map[string]any
	now      func() time.Time
}

// NewAggregator 创建聚合器，timeout <= 0 时使用 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		timeout:  timeout,
		metadata: make(map[string]any),
		now:      time.Now,
	}
}

// Register adds checkers; nil checkers (an absent durable tier) are skipped
func (a *Aggregator) Register(checkers ...Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range checkers {
		if c != nil {
			a.checkers = append(a.checkers, c)
		}
	}
}

// SetMetadata 设置响应元数据
func (a *Aggregator) SetMetadata(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

// Check runs every checker and rolls the results up: any unhealthy check
// makes the engine unhealthy, otherwise any degraded one makes it degraded
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := a.now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	metadata := make(map[string]any, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	a.mu.RUnlock()

	type indexed struct {
		i int
		r CheckResult
	}
	results := make(chan indexed, len(checkers))
	for i, c := range checkers {
		go func(i int, c Checker) {
			results <- indexed{i, a.run(ctx, c)}
		}(i, c)
	}

	done := make([]bool, len(checkers))
	checks := make(map[string]CheckResult, len(checkers))
collect:
	for n := 0; n < len(checkers); n++ {
		select {
		case res := <-results:
			done[res.i] = true
			checks[res.r.Name] = res.r
		case <-ctx.Done():
			for {
				select {
				case res := <-results:
					done[res.i] = true
					checks[res.r.Name] = res.r
				default:
					break collect
				}
			}
		}
	}
	for i, c := range checkers {
		if !done[i] {
			checks[c.Name()] = CheckResult{
				Name:      c.Name(),
				Status:    StatusUnhealthy,
				Message:   "Health check timed out",
				Error:     ctx.Err().Error(),
				Timestamp: start,
				Duration:  a.now().Sub(start),
			}
		}
	}

	return &Response{
		Status:    rollUp(checks),
		Timestamp: a.now(),
		Duration:  a.now().Sub(start),
		Checks:    checks,
		Metadata:  metadata,
	}
}

func (a *Aggregator) run(ctx context.Context, c Checker) (res CheckResult) {
	start := a.now()
	res = CheckResult{Name: c.Name(), Timestamp: start}
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusUnhealthy
			res.Message = "Health check panicked"
			res.Error = fmt.Sprint(r)
		}
		res.Duration = a.now().Sub(start)
	}()

	err := c.Check(ctx)
	res.Status = statusOf(err)
	switch res.Status {
	case StatusDegraded:
		res.Message = "Degraded"
		res.Error = err.Error()
	case StatusUnhealthy:
		res.Message = "Health check failed"
		res.Error = err.Error()
	default:
		res.Message = "OK"
	}
	return res
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusHealthy
	case IsDegraded(err):
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// rollUp returns the worst status; no checks means healthy
func rollUp(checks map[string]CheckResult) Status {
	worst := StatusHealthy
	for _, r := range checks {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}
