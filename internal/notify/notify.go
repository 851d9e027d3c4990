// Package notify delivers route change notifications to preview clients.
//
// Delivery is best-effort. The incremental engine reports every changed
// route through a Notifier, but nothing it does depends on the outcome.
package notify

import (
	"context"
	stderrors "errors"
	"log/slog"
)

// TypeChanged is the only event type: a route's artifact was written or
// removed.
const TypeChanged = "changed"

// Event is one route change.
type Event struct {
	Type  string `json:"type"`
	Route string `json:"route"`

	// Removed is set when the artifact no longer exists.
	Removed bool `json:"removed,omitempty"`
}

// Changed returns the event for route.
func Changed(route string) Event {
	return Event{Type: TypeChanged, Route: route}
}

// Removed returns the event for a retracted route.
func Removed(route string) Event {
	return Event{Type: TypeChanged, Route: route, Removed: true}
}

// Notifier receives route change events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev Event) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard drops every event.
var Discard Notifier = Func(func(context.Context, Event) error { return nil })

// Multi fans an event out to every notifier. All of them are called even
// when one fails; the errors are joined.
type Multi []Notifier

// Notify delivers ev to every notifier in m.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Logged wraps n so delivery errors are logged at debug level and never
// returned.
func Logged(n Notifier, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(ctx context.Context, ev Event) error {
		if err := n.Notify(ctx, ev); err != nil {
			logger.Debug("notification not delivered", "route", ev.Route, "err", err)
		}
		return nil
	})
}
