package warming

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-cache/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

// UserComputeFunc produces one user's value for a template
type UserComputeFunc func(ctx context.Context, userID string) ([]byte, error)

// UserTemplate describes a per-user entry. "{id}" in KeyPattern and Tags is
// replaced by the user id.
type UserTemplate struct {
	Name       string          `json:"name"`
	KeyPattern string          `json:"key_pattern"`
	Compute    UserComputeFunc `json:"-"`
	TTL        time.Duration   `json:"ttl"`
	Tags       []string        `json:"tags,omitempty"`
	Priority   int             `json:"priority"`
}

// Validate checks the template
func (t UserTemplate) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.KeyPattern, validation.Required, validation.By(func(interface{}) error {
			if !strings.Contains(t.KeyPattern, "{id}") {
				return errors.New("key_pattern 必须包含 {id}")
			}
			return nil
		})),
		validation.Field(&t.Compute, validation.By(func(interface{}) error {
			if t.Compute == nil {
				return errors.New("compute 不能为空")
			}
			return nil
		})),
		validation.Field(&t.TTL, validation.Min(time.Duration(0))),
	)
}

func (t UserTemplate) task(userID string) Task {
	tags := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		tags[i] = strings.ReplaceAll(tag, "{id}", userID)
	}
	compute := t.Compute
	return Task{
		ID:       t.Name + ":" + userID,
		Key:      strings.ReplaceAll(t.KeyPattern, "{id}", userID),
		Compute:  func(ctx context.Context) ([]byte, error) { return compute(ctx, userID) },
		TTL:      t.TTL,
		Priority: t.Priority,
		Tags:     tags,
	}
}

// RegisterUserTemplate adds or replaces a template by name
func (e *Engine) RegisterUserTemplate(tpl UserTemplate) error {
	if err := validator.Validate(tpl, ErrTemplateInvalid); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tpl.Name] = tpl
	return nil
}

// UnregisterUserTemplate removes a template
func (e *Engine) UnregisterUserTemplate(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.templates[name]; !ok {
		return ErrTemplateNotFound.WithMsgf("用户预热模板不存在: %s", name)
	}
	delete(e.templates, name)
	return nil
}

// WarmUserData runs every template for userID. It returns false without
// running anything when the user was warmed within the cooldown and force
// is not set.
func (e *Engine) WarmUserData(ctx context.Context, userID string, force bool) (WarmResult, bool) {
	if userID == "" {
		return WarmResult{Tasks: []TaskResult{}}, false
	}
	ctx, span := e.tracer.Start(ctx, "warming.WarmUserData")
	defer span.End()

	now := e.now()
	e.mu.Lock()
	if last, ok := e.userWarmed[userID]; ok && !force && now.Sub(last) < e.cfg.UserCooldown {
		e.mu.Unlock()
		e.log.DebugCtx(ctx, "user warming skipped, cooling down", zap.String("user_id", userID))
		return WarmResult{Tasks: []TaskResult{}}, false
	}
	e.userWarmed[userID] = now
	tasks := make([]Task, 0, len(e.templates))
	for _, tpl := range e.templates {
		tasks = append(tasks, tpl.task(userID))
	}
	e.pruneUsersLocked(now)
	e.mu.Unlock()

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return tasks[i].ID < tasks[j].ID
	})
	res := e.run(ctx, tasks)
	e.log.DebugCtx(ctx, "user data warmed",
		zap.String("user_id", userID),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, true
}

// pruneUsersLocked forgets users whose cooldown has passed
func (e *Engine) pruneUsersLocked(now time.Time) {
	for id, at := range e.userWarmed {
		if now.Sub(at) >= e.cfg.UserCooldown {
			delete(e.userWarmed, id)
		}
	}
}
