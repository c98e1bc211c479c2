// Package activity contains the preference-gated notification producers.
//
// Every producer is driven from the dispatcher goroutine: Apply is called with each
// new PreferenceState, and watcher callbacks are posted back onto the dispatcher.
// A producer captures a generation number when it starts watching; callbacks from
// an older generation are dropped, so nothing writes into state after Stop.
package activity

import (
	"log/slog"

	"campus_notify/internal/clock"
	"campus_notify/internal/docstore"
	"campus_notify/internal/loop"
	"campus_notify/internal/model"
)

// Producer is a preference-gated source of notifications.
type Producer interface {
	Apply(state model.PreferenceState)
	Stop()
}

// Notifier surfaces a message to the user.
type Notifier interface {
	Show(msg model.Message)
}

// Focus reports the screen the user is looking at.
type Focus interface {
	Screen() model.Screen
}

// Env carries the collaborators shared by all producers.
type Env struct {
	Store    docstore.Store
	Dispatch loop.Dispatcher
	Notify   Notifier
	Focus    Focus
	Clock    clock.Clock
	Log      *slog.Logger
}

func (e Env) screen() model.Screen {
	if e.Focus == nil {
		return model.Screen{}
	}
	return e.Focus.Screen()
}

// MessageKey builds the delivery key of a producer instance.
func MessageKey(producer, uid string) string {
	return producer + ":" + uid
}
