// Package notify fans detection events out to chat channels. The event
// filter lets operators pick which of opportunity_executable, volume_alert
// and run_failed reach them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier sends to every Sender in parallel. Notify honours the event
// filter; NotifyAll bypasses it.
type Notifier struct {
	senders []Sender
	allow   map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier builds a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allow := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allow[e] = struct{}{}
		}
	}
	return &Notifier{
		senders: senders,
		allow:   allow,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

func (n *Notifier) allowed(event string) bool {
	if len(n.allow) == 0 {
		return true
	}
	_, ok := n.allow[event]
	return ok
}

// Notify delivers the message when event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.allowed(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.broadcast(ctx, title, message)
}

// NotifyAll delivers regardless of event type; used for lifecycle messages.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.broadcast(ctx, title, message)
}

// broadcast waits for every sender. A failing sender never stops the others;
// all failures come back joined.
func (n *Notifier) broadcast(ctx context.Context, title, message string) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range n.senders {
		g.Go(func() error {
			err := s.Send(ctx, title, message)
			if err == nil {
				n.logger.DebugContext(ctx, "notification sent", slog.String("sender", s.Name()))
				return nil
			}
			n.logger.WarnContext(ctx, "notification failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}

// Len reports how many senders are configured.
func (n *Notifier) Len() int {
	return len(n.senders)
}
