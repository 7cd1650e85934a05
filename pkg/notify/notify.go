// Package notify delivers domain events to participants after a state change
// has been committed. Delivery is best effort: failures are logged and
// counted but never surface to the operation that emitted the event.
package notify

import (
	"context"
	"sync"
	"time"

	"tutorhub/pkg/logger"
	"tutorhub/pkg/metrics"
)

// Dispatcher sends one event to a transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event) error
	Close() error
}

const defaultDispatchTimeout = 5 * time.Second

type Notifier struct {
	dispatcher Dispatcher
	log        *logger.Logger
	metrics    *metrics.Metrics
	timeout    time.Duration
	wg         sync.WaitGroup
}

func NewNotifier(dispatcher Dispatcher, log *logger.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		log:        log,
		metrics:    m,
		timeout:    defaultDispatchTimeout,
	}
}

// Notify dispatches evt in the background. The caller's cancellation does
// not abort delivery, only its values are kept.
func (n *Notifier) Notify(ctx context.Context, evt Event) {
	if n == nil || n.dispatcher == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		err := n.dispatcher.Dispatch(dctx, evt)
		n.metrics.ObserveNotification(evt.Type, err)
		if err != nil {
			n.log.Warn("Failed to dispatch notification",
				"event_type", evt.Type,
				"event_key", evt.Key,
				"error", err,
			)
		}
	}()
}

// Flush blocks until every pending dispatch has finished.
func (n *Notifier) Flush() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// Close flushes pending dispatches and closes the transport.
func (n *Notifier) Close() error {
	if n == nil || n.dispatcher == nil {
		return nil
	}
	n.wg.Wait()
	return n.dispatcher.Close()
}
