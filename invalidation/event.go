package invalidation

import (
	"context"

	"github.com/KOMKZ/go-yogan-cache/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// WriteEvent is the payload of the HTTP and Kafka write hooks
type WriteEvent struct {
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Operation    string         `json:"operation"`
	Context      map[string]any `json:"context,omitempty"`
}

// Validate checks the identifying fields
func (w WriteEvent) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.ResourceType, validation.Required),
		validation.Field(&w.ResourceID, validation.Required),
		validation.Field(&w.Operation, validation.Required),
	)
}

// HandleWriteEvent validates ev and runs InvalidateByWrite for it
func (e *Engine) HandleWriteEvent(ctx context.Context, ev WriteEvent) (Result, error) {
	if err := validator.Validate(ev, ErrEventInvalid); err != nil {
		return Result{}, err
	}
	return e.InvalidateByWrite(ctx, ev.ResourceType, ev.ResourceID, ev.Operation, ev.Context)
}
