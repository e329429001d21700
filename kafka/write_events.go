package kafka

import (
	"context"
	"encoding/json"

	"github.com/KOMKZ/go-yogan-cache/invalidation"
	"github.com/KOMKZ/go-yogan-cache/logger"
	"go.uber.org/zap"
)

// WriteEventTarget applies decoded write events
type WriteEventTarget interface {
	HandleWriteEvent(ctx context.Context, ev invalidation.WriteEvent) (invalidation.Result, error)
}

// NewWriteEventHandler decodes JSON invalidation.WriteEvent messages and
// feeds them to target. Undecodable or invalid messages are logged and
// skipped so they never block the partition.
func NewWriteEventHandler(target WriteEventTarget, log *logger.CtxZapLogger) MessageHandler {
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	return func(ctx context.Context, msg *ConsumedMessage) error {
		var ev invalidation.WriteEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.WarnCtx(ctx, "write event decode failed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}

		res, err := target.HandleWriteEvent(ctx, ev)
		if err != nil {
			return err
		}
		log.DebugCtx(ctx, "write event applied",
			zap.String("resource_type", ev.ResourceType),
			zap.String("resource_id", ev.ResourceID),
			zap.String("operation", ev.Operation),
			zap.Int("rules", len(res.Fired)),
			zap.Int("removed", res.Removed))
		return nil
	}
}
