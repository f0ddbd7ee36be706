package notify

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearance_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch buffer was full",
	})
	failedNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearance_notifications_failed_total",
		Help: "Notifications the underlying sink failed to deliver",
	})
)

// Dispatcher decouples notification delivery from state transitions: Notify
// enqueues without blocking, and a background worker drains the buffer into
// the wrapped sink. When the buffer is full the notification is dropped and
// counted; losing a notification is preferable to stalling a transition.
type Dispatcher struct {
	inbox  chan Notification
	sink   Sink
	logger *slog.Logger
}

func NewDispatcher(sink Sink, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		inbox:  make(chan Notification, buffer),
		sink:   sink,
		logger: logger,
	}
}

// Notify enqueues without blocking. Always returns nil; delivery problems
// are the worker's to log.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	select {
	case d.inbox <- n:
	default:
		droppedNotifications.Inc()
		d.logger.WarnContext(ctx, "notification dropped, buffer full",
			"recipient", n.Recipient,
			"title", n.Title,
		)
	}
	return nil
}

// Run drains the inbox until ctx is cancelled. Sink failures are logged and
// counted, never retried here.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-d.inbox:
			if err := d.sink.Notify(ctx, n); err != nil {
				failedNotifications.Inc()
				d.logger.WarnContext(ctx, "notification delivery failed",
					"recipient", n.Recipient,
					"title", n.Title,
					"error", err,
				)
			}
		}
	}
}
