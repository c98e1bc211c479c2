// Package diff classifies snapshot-to-snapshot transitions of watched documents.
package diff

import (
	"slices"

	"campus_notify/internal/docstore"
	"campus_notify/internal/model"
)

// EventKind is the semantic outcome of observing one snapshot.
type EventKind int

// Event kinds.
const (
	EventNone EventKind = iota
	EventChange
	EventTerminal
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "change"
	case EventTerminal:
		return "terminal"
	case EventRemoved:
		return "removed"
	}
	return "none"
}

// Event is emitted at most once per entity per snapshot.
type Event struct {
	Kind    EventKind
	ID      string
	Prev    docstore.Fields
	Next    docstore.Fields
	Changed []string
}

// Entity is the remembered state of one watched document.
type Entity struct {
	ID       string
	Kind     model.EntityKind
	Last     docstore.Fields
	Exists   bool
	Hydrated bool
}

// Tracker remembers the last snapshot per entity id.
type Tracker struct {
	kind        model.EntityKind
	watched     []string
	statusField string
	terminal    []string
	entities    map[string]*Entity
}

// NewTracker creates a Tracker comparing the watched fields; a transition of
// statusField into one of terminal produces EventTerminal.
func NewTracker(kind model.EntityKind, watched []string, statusField string, terminal ...string) *Tracker {
	return &Tracker{
		kind:        kind,
		watched:     slices.Clone(watched),
		statusField: statusField,
		terminal:    slices.Clone(terminal),
		entities:    map[string]*Entity{},
	}
}

// Observe records doc as the latest snapshot of id and classifies the transition.
// The first snapshot of an entity only establishes the baseline.
func (t *Tracker) Observe(id string, doc docstore.Document) Event {
	e, ok := t.entities[id]
	if !ok {
		e = &Entity{ID: id, Kind: t.kind}
		t.entities[id] = e
	}

	prev, prevExists, hydrated := e.Last, e.Exists, e.Hydrated
	e.Last = doc.Fields.Clone()
	e.Exists = doc.Exists
	e.Hydrated = true

	ev := Event{ID: id, Prev: prev, Next: e.Last}
	switch {
	case !hydrated:
		return ev
	case prevExists && !doc.Exists:
		ev.Kind = EventRemoved
		return ev
	case !doc.Exists || !prevExists:
		return ev
	}

	if t.isTerminal(prev) {
		return ev
	}
	if t.isTerminal(e.Last) {
		ev.Kind = EventTerminal
		return ev
	}

	for _, f := range t.watched {
		a, _ := prev.Lookup(f)
		b, _ := e.Last.Lookup(f)
		if !docstore.Equal(a, b) {
			ev.Changed = append(ev.Changed, f)
		}
	}
	if len(ev.Changed) > 0 {
		ev.Kind = EventChange
	}
	return ev
}

// Forget discards an entity so its next snapshot hydrates again.
func (t *Tracker) Forget(id string) {
	delete(t.entities, id)
}

// Reset discards every entity.
func (t *Tracker) Reset() {
	clear(t.entities)
}

// Entity returns a copy of the remembered state of id.
func (t *Tracker) Entity(id string) (Entity, bool) {
	e, ok := t.entities[id]
	if !ok {
		return Entity{}, false
	}
	out := *e
	out.Last = e.Last.Clone()
	return out, true
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	return len(t.entities)
}

func (t *Tracker) isTerminal(f docstore.Fields) bool {
	if t.statusField == "" {
		return false
	}
	return slices.Contains(t.terminal, f.String(t.statusField))
}
