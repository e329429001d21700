package warming

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScheduleChange an interval adjusted by OptimizeSchedules
type ScheduleChange struct {
	TaskID    string        `json:"task_id"`
	Key       string        `json:"key"`
	Frequency float64       `json:"accesses_per_hour"`
	Old       time.Duration `json:"old_interval"`
	New       time.Duration `json:"new_interval"`
}

// OptimizeSchedules sets each task's interval from its key's observed
// access frequency: one hour divided by accesses per hour, clamped to
// [MinInterval, MaxInterval]. Keys never accessed get MaxInterval. A task
// whose next run is further away than its new interval is pulled in.
func (e *Engine) OptimizeSchedules() []ScheduleChange {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	var changes []ScheduleChange
	for _, t := range e.tasks {
		freq := e.tracker.Frequency(t.Key)
		interval := e.intervalFor(freq)
		if interval == t.Interval {
			continue
		}
		changes = append(changes, ScheduleChange{
			TaskID:    t.ID,
			Key:       t.Key,
			Frequency: freq,
			Old:       t.Interval,
			New:       interval,
		})
		t.Interval = interval
		if next := now.Add(interval); t.NextRunAt.After(next) {
			t.NextRunAt = next
		}
	}
	if len(changes) > 0 {
		e.log.InfoCtx(context.Background(), "warming schedules optimized", zap.Int("changed", len(changes)))
	}
	return changes
}

func (e *Engine) intervalFor(perHour float64) time.Duration {
	if perHour <= 0 {
		return e.cfg.MaxInterval
	}
	d := time.Duration(float64(time.Hour) / perHour)
	if d < e.cfg.MinInterval {
		return e.cfg.MinInterval
	}
	if d > e.cfg.MaxInterval {
		return e.cfg.MaxInterval
	}
	return d.Round(time.Second)
}
