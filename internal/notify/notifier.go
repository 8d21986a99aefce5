// Package notify delivers operator alerts to chat channels. Alerts carry an
// event name and are dropped unless the event is enabled in configuration.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// Event names.
const (
	EventStreamEnded  = "stream_ended"
	EventStreamFailed = "stream_failed"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every Sender. An empty event list enables
// every event.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders, forwarding only events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event would be forwarded.
func (n *Notifier) Enabled(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// Notify sends title and message to every sender when event is enabled.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyStreamEnd reports a finished ingestion session. Failed sessions use
// the stream_failed event, all others stream_ended.
func (n *Notifier) NotifyStreamEnd(ctx context.Context, end domain.StreamEnd) error {
	event := EventStreamEnded
	title := fmt.Sprintf("%s %s stream stopped", end.Exchange, end.Symbol)
	if end.State == domain.StreamFailed {
		event = EventStreamFailed
		title = fmt.Sprintf("%s %s stream failed", end.Exchange, end.Symbol)
	}
	msg := fmt.Sprintf("session %s ended in state %s after %d messages (%d estimates)",
		end.SessionID, end.State, end.Messages, end.Emitted)
	if end.State == domain.StreamFailed && end.Reason != "" {
		msg += "\nreason: " + end.Reason
	}
	return n.Notify(ctx, event, title, msg)
}

// dispatch tries every sender and joins their failures.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
