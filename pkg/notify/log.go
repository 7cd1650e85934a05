package notify

import (
	"context"

	"tutorhub/pkg/logger"
)

type logDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher writes events to the application log. Used when no
// broker is configured.
func NewLogDispatcher(log *logger.Logger) Dispatcher {
	return &logDispatcher{log: log}
}

func (d *logDispatcher) Dispatch(ctx context.Context, evt Event) error {
	d.log.InfoContext(ctx, "Notification",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"event_key", evt.Key,
		"recipients", evt.Recipients,
		"data", evt.Data,
	)
	return nil
}

func (d *logDispatcher) Close() error {
	return nil
}
