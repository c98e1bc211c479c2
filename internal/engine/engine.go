// Package engine wires identity, preferences, producers and the delivery channel
// into one running notification engine.
package engine

import (
	"context"
	"log/slog"

	"campus_notify/internal/activity"
	"campus_notify/internal/clock"
	"campus_notify/internal/delivery"
	"campus_notify/internal/docstore"
	"campus_notify/internal/draft"
	"campus_notify/internal/identity"
	"campus_notify/internal/lifecycle"
	"campus_notify/internal/loop"
	"campus_notify/internal/model"
	"campus_notify/internal/prefs"
)

// Deps are the collaborators of an Engine.
type Deps struct {
	Store    docstore.Store
	Dispatch loop.Dispatcher
	Channel  *delivery.Channel
	Drafts   *draft.Repo
	Clock    clock.Clock
	Log      *slog.Logger
	PageSize int
}

// Status is a point-in-time view of the engine, used by the bot's /settings command.
type Status struct {
	User      identity.User
	Prefs     model.PreferenceState
	Screen    model.Screen
	Active    *model.Message
	Favorites []string
	Shown     int
}

// Engine owns the per-user producer set. Its state lives on the dispatcher goroutine;
// the exported methods post onto it.
type Engine struct {
	store    docstore.Store
	dispatch loop.Dispatcher
	channel  *delivery.Channel
	drafts   *draft.Repo
	clock    clock.Clock
	log      *slog.Logger
	pageSize int

	gate   *prefs.Gate
	user   identity.User
	bound  bool
	screen model.Screen

	favorites *activity.Favorites
	messages  *activity.Messages
	recs      *activity.Recommendations
	reminder  *draft.Scheduler
	unsubs    []func()

	cancels []func()
}

// New creates an Engine. Call Start to attach it to an identity source.
func New(d Deps) *Engine {
	return &Engine{
		store:    d.Store,
		dispatch: d.Dispatch,
		channel:  d.Channel,
		drafts:   d.Drafts,
		clock:    d.Clock,
		log:      d.Log,
		pageSize: d.PageSize,
		gate:     prefs.New(d.Store, d.Clock, d.Dispatch, d.Log),
		screen:   model.Screen{Name: model.ScreenHome},
	}
}

// Start binds the current user and follows identity and lifecycle changes.
func (e *Engine) Start(src identity.Source, sig *lifecycle.Signal) {
	e.dispatch.Post(func() { e.bind(src.Current()) })
	e.cancels = append(e.cancels, src.Watch(func(u identity.User) {
		e.dispatch.Post(func() { e.bind(u) })
	}))
	if sig != nil {
		e.cancels = append(e.cancels, sig.Subscribe(e.HandleLifecycle))
	}
}

// Screen implements activity.Focus. It must be called on the dispatcher goroutine.
func (e *Engine) Screen() model.Screen {
	return e.screen
}

// SetScreen records the screen the user is looking at.
func (e *Engine) SetScreen(s model.Screen) {
	e.dispatch.Post(func() {
		e.screen = s
		e.log.Debug("screen changed", "screen", s.Name, "param", s.Param)
	})
}

// HandleLifecycle forwards a lifecycle transition to the draft reminder.
func (e *Engine) HandleLifecycle(st lifecycle.State) {
	e.dispatch.Post(func() {
		if e.reminder != nil {
			e.reminder.HandleLifecycle(st)
		}
	})
}

// Foreground is shorthand for HandleLifecycle(lifecycle.Foreground).
func (e *Engine) Foreground() {
	e.HandleLifecycle(lifecycle.Foreground)
}

// CheckDraft runs the draft reminder check.
func (e *Engine) CheckDraft(ctx context.Context) {
	e.dispatch.Post(func() {
		if e.reminder != nil {
			e.reminder.CheckNow(ctx)
		}
	})
}

// Dismiss hides the active message. Dismissing the draft reminder also starts its cooldown.
func (e *Engine) Dismiss(ctx context.Context) {
	e.dispatch.Post(func() {
		if e.reminder != nil && e.reminder.Dismiss(ctx) {
			return
		}
		e.channel.Dismiss()
	})
}

// ResumeDraft hides the draft reminder and moves focus to the compose screen.
func (e *Engine) ResumeDraft() {
	e.dispatch.Post(func() {
		if e.reminder != nil {
			e.reminder.Resume()
		}
		e.screen = model.Screen{Name: model.ScreenCompose}
	})
}

// Status returns a snapshot of the engine state. It reports false if ctx ends first.
func (e *Engine) Status(ctx context.Context) (Status, bool) {
	var st Status
	ok := loop.Call(ctx, e.dispatch, func() {
		st = Status{
			User:   e.user,
			Prefs:  e.gate.State(),
			Screen: e.screen,
		}
		if msg, ok := e.channel.Active(); ok {
			st.Active = &msg
		}
		if e.favorites != nil {
			st.Favorites = e.favorites.Watching()
		}
		if e.recs != nil && e.recs.Matcher() != nil {
			st.Shown = e.recs.Matcher().ShownCount()
		}
	})
	return st, ok
}

// Stop tears down every producer and watcher.
func (e *Engine) Stop() {
	for _, cancel := range e.cancels {
		cancel()
	}
	e.cancels = nil
	e.dispatch.Post(func() {
		e.teardown()
		e.gate.Close()
		e.channel.Dismiss()
		e.bound = false
	})
}

func (e *Engine) bind(u identity.User) {
	if e.bound && u.ID == e.user.ID {
		e.user = u
		return
	}
	e.teardown()
	e.user = u
	e.bound = true
	e.gate.SetUser(u.ID)

	if !u.SignedIn() {
		e.log.Info("signed out, notifications disabled")
		return
	}

	env := activity.Env{
		Store:    e.store,
		Dispatch: e.dispatch,
		Notify:   e.channel,
		Focus:    e,
		Clock:    e.clock,
		Log:      e.log,
	}
	e.favorites = activity.NewFavorites(env, u.ID)
	e.messages = activity.NewMessages(env, u.ID)
	e.recs = activity.NewRecommendations(env, u.ID, e.pageSize)
	e.reminder = draft.NewScheduler(e.drafts, e.channel, e, e.clock, e.log, u.ID)

	for _, p := range e.producers() {
		e.unsubs = append(e.unsubs, e.gate.Subscribe(p.Apply))
	}
	e.log.Info("notifications bound", "user_id", u.ID)
}

func (e *Engine) teardown() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
	for _, p := range e.producers() {
		p.Stop()
	}
	e.favorites, e.messages, e.recs, e.reminder = nil, nil, nil, nil
}

func (e *Engine) producers() []activity.Producer {
	var out []activity.Producer
	if e.favorites != nil {
		out = append(out, e.favorites)
	}
	if e.messages != nil {
		out = append(out, e.messages)
	}
	if e.recs != nil {
		out = append(out, e.recs)
	}
	if e.reminder != nil {
		out = append(out, e.reminder)
	}
	return out
}
