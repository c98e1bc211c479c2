package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"campus_notify/internal/docstore"
	"campus_notify/internal/model"
)

func listing(f docstore.Fields) docstore.Document {
	return docstore.Document{ID: "l1", Exists: true, Fields: f}
}

var missing = docstore.Document{ID: "l1"}

func TestTrackerObserve(t *testing.T) {
	tests := []struct {
		name        string
		docs        []docstore.Document
		wantKinds   []EventKind
		wantChanged []string
	}{
		{
			name:      "first snapshot is baseline",
			docs:      []docstore.Document{listing(docstore.Fields{"price": 10, "status": "available"})},
			wantKinds: []EventKind{EventNone},
		},
		{
			name: "price change",
			docs: []docstore.Document{
				listing(docstore.Fields{"price": 10, "status": "available"}),
				listing(docstore.Fields{"price": 8.0, "status": "available"}),
			},
			wantKinds:   []EventKind{EventNone, EventChange},
			wantChanged: []string{"price"},
		},
		{
			name: "unwatched field ignored",
			docs: []docstore.Document{
				listing(docstore.Fields{"price": 10, "views": 1}),
				listing(docstore.Fields{"price": 10.0, "views": 2}),
			},
			wantKinds: []EventKind{EventNone, EventNone},
		},
		{
			name: "sold is terminal and sticky",
			docs: []docstore.Document{
				listing(docstore.Fields{"price": 10, "status": "available"}),
				listing(docstore.Fields{"price": 10, "status": "sold"}),
				listing(docstore.Fields{"price": 5, "status": "sold"}),
				listing(docstore.Fields{"price": 5, "status": "available"}),
			},
			wantKinds: []EventKind{EventNone, EventTerminal, EventNone, EventNone},
		},
		{
			name: "already sold at baseline",
			docs: []docstore.Document{
				listing(docstore.Fields{"price": 10, "status": "sold"}),
				listing(docstore.Fields{"price": 9, "status": "sold"}),
			},
			wantKinds: []EventKind{EventNone, EventNone},
		},
		{
			name: "removed once",
			docs: []docstore.Document{
				listing(docstore.Fields{"price": 10}),
				missing,
				missing,
			},
			wantKinds: []EventKind{EventNone, EventRemoved, EventNone},
		},
		{
			name: "missing at baseline then created",
			docs: []docstore.Document{
				missing,
				listing(docstore.Fields{"price": 10}),
				listing(docstore.Fields{"price": 12}),
			},
			wantKinds:   []EventKind{EventNone, EventNone, EventChange},
			wantChanged: []string{"price"},
		},
		{
			name: "status and title change together",
			docs: []docstore.Document{
				listing(docstore.Fields{"title": "Lamp", "status": "available"}),
				listing(docstore.Fields{"title": "Desk lamp", "status": "reserved"}),
			},
			wantKinds:   []EventKind{EventNone, EventChange},
			wantChanged: []string{"title", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(model.KindListing, []string{"price", "title", "status"}, "status", model.StatusSold)
			var kinds []EventKind
			var changed []string
			for _, d := range tt.docs {
				ev := tr.Observe("l1", d)
				kinds = append(kinds, ev.Kind)
				if ev.Kind == EventChange {
					changed = ev.Changed
				}
			}
			if diff := cmp.Diff(tt.wantKinds, kinds); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantChanged, changed); diff != "" {
				t.Errorf("changed fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrackerForget(t *testing.T) {
	tr := NewTracker(model.KindThread, []string{"lastMessage"}, "")
	tr.Observe("t1", docstore.Document{ID: "t1", Exists: true, Fields: docstore.Fields{"lastMessage": "hi"}})

	e, ok := tr.Entity("t1")
	if !ok || !e.Hydrated || e.Kind != model.KindThread {
		t.Fatalf("Entity(t1) = %+v, %v", e, ok)
	}

	tr.Forget("t1")
	ev := tr.Observe("t1", docstore.Document{ID: "t1", Exists: true, Fields: docstore.Fields{"lastMessage": "new"}})
	if ev.Kind != EventNone {
		t.Errorf("first snapshot after Forget = %v, want none", ev.Kind)
	}

	tr.Observe("t2", docstore.Document{ID: "t2"})
	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Len() = %d after reset", tr.Len())
	}
}
