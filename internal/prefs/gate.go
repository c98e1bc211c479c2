// Package prefs derives per-category notification enablement from the user's settings document.
package prefs

import (
	"log/slog"
	"maps"
	"time"

	"campus_notify/internal/clock"
	"campus_notify/internal/docstore"
	"campus_notify/internal/loop"
	"campus_notify/internal/model"
)

// SettingsPath returns the settings document path of a user.
func SettingsPath(uid string) string {
	return docstore.Join("settings", uid)
}

// Gate watches one settings document and fans the derived PreferenceState out to listeners.
// All methods must be called from the dispatcher's goroutine.
type Gate struct {
	store    docstore.Store
	clock    clock.Clock
	dispatch loop.Dispatcher
	log      *slog.Logger

	uid   string
	state model.PreferenceState
	unsub docstore.Unsubscribe
	gen   uint64

	listeners map[uint64]func(model.PreferenceState)
	nextID    uint64
}

// New creates a Gate with no user; its state is DisabledState.
func New(store docstore.Store, c clock.Clock, d loop.Dispatcher, log *slog.Logger) *Gate {
	return &Gate{
		store:     store,
		clock:     c,
		dispatch:  d,
		log:       log,
		state:     model.DisabledState(),
		listeners: map[uint64]func(model.PreferenceState){},
	}
}

// State returns the latest derived state.
func (g *Gate) State() model.PreferenceState {
	return cloneState(g.state)
}

// User returns the user whose settings are watched.
func (g *Gate) User() string {
	return g.uid
}

// Subscribe registers fn and immediately replays the latest state to it.
func (g *Gate) Subscribe(fn func(model.PreferenceState)) func() {
	g.nextID++
	id := g.nextID
	g.listeners[id] = fn
	fn(cloneState(g.state))
	return func() { delete(g.listeners, id) }
}

// SetUser switches the watched settings document. An empty uid means signed out:
// the watcher is released and DisabledState is emitted before SetUser returns.
func (g *Gate) SetUser(uid string) {
	if uid == g.uid && (uid == "" || g.unsub != nil) {
		return
	}
	g.release()
	g.uid = uid

	if uid == "" {
		g.emit(model.DisabledState())
		return
	}

	// A new identity starts from "everything off" so the first snapshot stamps
	// enablement for every category that is on.
	g.state = model.DisabledState()

	gen := g.gen
	path := SettingsPath(uid)
	g.unsub = g.store.WatchDoc(path,
		func(doc docstore.Document) {
			g.dispatch.Post(func() {
				if gen != g.gen {
					return
				}
				g.apply(Parse(doc))
			})
		},
		func(err error) {
			g.dispatch.Post(func() {
				if gen != g.gen {
					return
				}
				g.log.Error("watch settings", "user_id", uid, "error", err)
				g.apply(model.DefaultState())
			})
		},
	)
}

// Close releases the watcher and drops all listeners.
func (g *Gate) Close() {
	g.release()
	g.uid = ""
	clear(g.listeners)
}

func (g *Gate) release() {
	g.gen++
	if g.unsub != nil {
		g.unsub()
		g.unsub = nil
	}
}

func (g *Gate) apply(next model.PreferenceState) {
	now := g.clock.Now()
	since := make(map[model.Category]time.Time, len(model.AllCategories))
	for _, c := range model.AllCategories {
		if !next.Enabled(c) {
			continue
		}
		if g.state.Enabled(c) {
			since[c] = g.state.Since(c)
			continue
		}
		since[c] = now
		g.log.Debug("category enabled", "user_id", g.uid, "category", c)
	}
	next.EnabledSince = since
	g.emit(next)
}

func (g *Gate) emit(next model.PreferenceState) {
	g.state = next
	for _, fn := range g.listeners {
		fn(cloneState(next))
	}
}

// Parse derives a PreferenceState from a settings document. Missing fields and a
// missing document fall back to DefaultState.
func Parse(doc docstore.Document) model.PreferenceState {
	st := model.DefaultState()
	if !doc.Exists {
		return st
	}
	for _, c := range model.AllCategories {
		if on, ok := doc.Fields.Bool(string(c)); ok {
			st.SetEnabled(c, on)
		}
	}

	f := doc.Fields.Map("recommendationFilter")
	if f == nil {
		return st
	}
	if v, ok := f.Float("minPrice"); ok {
		st.Filter.MinPrice = &v
	}
	if v, ok := f.Float("maxPrice"); ok {
		st.Filter.MaxPrice = &v
	}
	st.Filter.Categories = f.Strings("categories")
	st.Filter.Condition = f.String("condition")
	return st
}

// FilterFields renders a filter back into settings-document form.
func FilterFields(f model.RecommendationFilter) docstore.Fields {
	out := docstore.Fields{
		"categories": append([]string{}, f.Categories...),
		"condition":  f.Condition,
	}
	if f.MinPrice != nil {
		out["minPrice"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		out["maxPrice"] = *f.MaxPrice
	}
	return out
}

func cloneState(s model.PreferenceState) model.PreferenceState {
	s.EnabledSince = maps.Clone(s.EnabledSince)
	if s.EnabledSince == nil {
		s.EnabledSince = map[model.Category]time.Time{}
	}
	s.Filter.Categories = append([]string(nil), s.Filter.Categories...)
	return s
}
