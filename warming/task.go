package warming

import (
	"errors"
	"sort"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Task 预热任务
type Task struct {
	ID       string            `json:"id"`
	Key      string            `json:"key"`
	Compute  cache.ComputeFunc `json:"-"`
	TTL      time.Duration     `json:"ttl"`
	Priority int               `json:"priority"`
	Tags     []string          `json:"tags,omitempty"`

	// Interval between scheduled runs
	Interval  time.Duration `json:"interval"`
	NextRunAt time.Time     `json:"next_run_at"`

	// Critical tasks run in WarmCriticalData and ahead of others in RunDue
	Critical bool `json:"critical"`

	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int64     `json:"runs"`
	Failures    int64     `json:"failures"`
	LastElapsed int64     `json:"last_duration_ms"`
}

// Validate checks the task definition
func (t Task) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Key, validation.Required),
		validation.Field(&t.Compute, validation.By(func(interface{}) error {
			if t.Compute == nil {
				return errors.New("compute 不能为空")
			}
			return nil
		})),
		validation.Field(&t.TTL, validation.Min(time.Duration(0))),
		validation.Field(&t.Interval, validation.Min(time.Duration(0))),
		validation.Field(&t.Tags, validation.Each(validation.Required)),
	)
}

// TaskResult outcome of one task execution
type TaskResult struct {
	TaskID     string `json:"task_id"`
	Key        string `json:"key"`
	Critical   bool   `json:"critical"`
	Success    bool   `json:"success"`
	Stored     bool   `json:"stored"` // false when an invalidation overtook the compute
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// WarmResult outcome of a warming pass
type WarmResult struct {
	Succeeded       int          `json:"succeeded"`
	Failed          int          `json:"failed"`
	TotalDurationMs int64        `json:"total_duration_ms"`
	Tasks           []TaskResult `json:"tasks"`
}

// sortTasks orders critical tasks first, then by descending priority.
// ID breaks ties so passes are reproducible.
func sortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]
		if a.Critical != b.Critical {
			return a.Critical
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}
