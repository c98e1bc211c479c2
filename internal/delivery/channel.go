// Package delivery implements the single-slot transient message channel.
package delivery

import (
	"log/slog"
	"time"

	"campus_notify/internal/clock"
	"campus_notify/internal/loop"
	"campus_notify/internal/model"
)

// DefaultTTL is used when a message does not carry its own TTL.
const DefaultTTL = 3500 * time.Millisecond

// Renderer draws and removes the active message.
type Renderer interface {
	Show(msg model.Message)
	Hide(msg model.Message)
}

// Channel holds at most one active message. A new message replaces the current one
// and restarts the auto-hide countdown; nothing is queued.
//
// Channel is not safe for concurrent use: call it from the dispatcher's goroutine.
type Channel struct {
	renderer Renderer
	clock    clock.Clock
	dispatch loop.Dispatcher
	log      *slog.Logger
	ttl      time.Duration

	active *model.Message
	timer  clock.Timer
	gen    uint64
}

// New creates a Channel. A ttl <= 0 selects DefaultTTL.
func New(r Renderer, c clock.Clock, d loop.Dispatcher, ttl time.Duration, log *slog.Logger) *Channel {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Channel{renderer: r, clock: c, dispatch: d, ttl: ttl, log: log}
}

// Show replaces the active message with msg.
func (c *Channel) Show(msg model.Message) {
	if msg.TTL <= 0 {
		msg.TTL = c.ttl
	}

	if c.active != nil {
		c.stopTimer()
		c.renderer.Hide(*c.active)
	}

	c.gen++
	gen := c.gen
	c.active = &msg
	c.renderer.Show(msg)
	c.log.Debug("show message", "key", msg.Key, "title", msg.Title, "ttl", msg.TTL)

	c.timer = c.clock.AfterFunc(msg.TTL, func() {
		c.dispatch.Post(func() {
			if gen != c.gen {
				return
			}
			c.hide()
		})
	})
}

// Dismiss hides the active message immediately.
func (c *Channel) Dismiss() {
	if c.active == nil {
		return
	}
	c.stopTimer()
	c.hide()
}

// DismissKey hides the active message only if it was raised under key.
func (c *Channel) DismissKey(key string) bool {
	if c.active == nil || c.active.Key != key {
		return false
	}
	c.Dismiss()
	return true
}

// Active returns the visible message, if any.
func (c *Channel) Active() (model.Message, bool) {
	if c.active == nil {
		return model.Message{}, false
	}
	return *c.active, true
}

func (c *Channel) hide() {
	msg := *c.active
	c.active = nil
	c.timer = nil
	c.gen++
	c.renderer.Hide(msg)
	c.log.Debug("hide message", "key", msg.Key)
}

func (c *Channel) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// LogRenderer renders messages as log lines; used when no UI is attached.
type LogRenderer struct {
	Log *slog.Logger
}

// Show implements Renderer.
func (r LogRenderer) Show(msg model.Message) {
	r.Log.Info("notification", "title", msg.Title, "body", msg.Body)
}

// Hide implements Renderer.
func (r LogRenderer) Hide(msg model.Message) {
	r.Log.Debug("notification hidden", "title", msg.Title)
}
