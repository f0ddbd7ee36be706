// Package notify carries workflow events to people and reviewers.
//
// Delivery is fire-and-forget: sinks must never be on the critical path of
// a state transition, and a delivery failure never rolls back a committed
// transition. Retry policy, if any, belongs to the sink implementation.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Severity classifies a notification for display and routing.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Notification is one workflow event addressed to a person or a reviewer
// scope.
type Notification struct {
	// Recipient is a person id or a reviewer audience such as
	// "reviewers:department-clearance:engineering".
	Recipient string            `json:"recipient"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Severity  Severity          `json:"severity"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives workflow events to deliver.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the structured log. Default sink when no
// external channel is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"recipient", n.Recipient,
		"title", n.Title,
		"message", n.Message,
		"severity", string(n.Severity),
	)
	return nil
}

// InMemorySink records notifications for assertions in tests.
type InMemorySink struct {
	mu   sync.Mutex
	sent []Notification
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Notify(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// Notifications returns a snapshot of everything delivered so far.
func (s *InMemorySink) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}
