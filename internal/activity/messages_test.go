package activity

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"campus_notify/internal/docstore"
	"campus_notify/internal/model"
)

func threadFields(uid string, unread int) docstore.Fields {
	return docstore.Fields{
		"participants": []string{uid, "s1"},
		"listingTitle": "Desk lamp",
		"sellerName":   "Sam",
		"unread":       map[string]any{uid: unread},
	}
}

func incoming(text, sender string, at time.Time, unread int) docstore.Fields {
	return docstore.Fields{
		"unread.u1":   unread,
		"lastMessage": map[string]any{"text": text, "senderId": sender, "createdAt": at},
	}
}

func TestMessagesNotifications(t *testing.T) {
	te := newTestEnv()
	te.set(t, docstore.Join(ThreadsCollection, "t1"), threadFields("u1", 2))

	m := NewMessages(te.Env, "u1")
	m.Apply(enabled(model.CategoryMessages, t0))
	if got := te.notify.take(); len(got) != 0 {
		t.Fatalf("existing unread messages notified: %v", got)
	}
	if n, ok := m.Unread("t1"); !ok || n != 2 {
		t.Fatalf("Unread(t1) = %d, %v; want 2", n, ok)
	}

	key := MessageKey("messages", "u1")
	path := docstore.Join(ThreadsCollection, "t1")
	later := t0.Add(time.Minute)

	steps := []struct {
		name   string
		screen model.Screen
		fields docstore.Fields
		want   []model.Message
	}{
		{
			name:   "new message",
			fields: incoming("Still available?", "s1", later, 3),
			want:   []model.Message{{Key: key, Title: "New message from Sam", Body: "Desk lamp: Still available?"}},
		},
		{
			name:   "read on another device",
			fields: docstore.Fields{"unread.u1": 0},
		},
		{
			name:   "looking at the thread",
			screen: model.Screen{Name: model.ScreenChat, Param: "t1"},
			fields: incoming("Hello?", "s1", later, 1),
		},
		{
			name:   "looking at another thread",
			screen: model.Screen{Name: model.ScreenChat, Param: "t9"},
			fields: incoming("Ping", "s1", later, 2),
			want:   []model.Message{{Key: key, Title: "New message from Sam", Body: "Desk lamp: Ping"}},
		},
		{
			name:   "own message",
			fields: incoming("Yes", "u1", later, 3),
		},
		{
			name:   "message older than enablement",
			fields: incoming("Old", "s1", t0.Add(-time.Hour), 4),
		},
	}
	for _, s := range steps {
		te.focus.screen = s.screen
		te.update(t, path, s.fields)
		if diff := cmp.Diff(s.want, te.notify.take()); diff != "" {
			t.Errorf("%s: messages mismatch (-want +got):\n%s", s.name, diff)
		}
	}
}

func TestMessagesNewThread(t *testing.T) {
	te := newTestEnv()
	m := NewMessages(te.Env, "u1")
	m.Apply(enabled(model.CategoryMessages, t0))

	te.set(t, docstore.Join(ThreadsCollection, "t2"), threadFields("u1", 0))
	if got := te.notify.take(); len(got) != 0 {
		t.Fatalf("empty new thread notified: %v", got)
	}

	f := threadFields("u2", 1)
	f["participants"] = []string{"u1", "u2"}
	f["unread"] = map[string]any{"u1": 1}
	f["sellerName"] = ""
	te.set(t, docstore.Join(ThreadsCollection, "t3"), f)

	want := []model.Message{{Key: MessageKey("messages", "u1"), Title: "New message", Body: "Desk lamp: You have 1 unread messages"}}
	if diff := cmp.Diff(want, te.notify.take()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	te.remove(t, docstore.Join(ThreadsCollection, "t3"))
	if _, ok := m.Unread("t3"); ok {
		t.Error("removed thread still tracked")
	}
}

func TestMessagesFallbackToInbox(t *testing.T) {
	te := newTestEnv()
	te.store.InjectError(ThreadsCollection, docstore.ErrPermissionDenied)
	inbox := docstore.Join(InboxPath("u1"), "t1")
	te.set(t, inbox, threadFields("u1", 0))

	m := NewMessages(te.Env, "u1")
	m.Apply(enabled(model.CategoryMessages, t0))
	if !m.UsingFallback() {
		t.Fatal("producer did not fall back to the inbox")
	}

	te.update(t, inbox, incoming("Hi", "s1", t0.Add(time.Minute), 1))
	if got := te.notify.take(); len(got) != 1 {
		t.Errorf("got %d messages from inbox, want 1", len(got))
	}

	// A disable/enable cycle retries the shared collection first.
	m.Apply(model.DisabledState())
	te.store.InjectError(ThreadsCollection, nil)
	m.Apply(enabled(model.CategoryMessages, t0))
	if m.UsingFallback() {
		t.Error("producer stayed on the inbox after re-enable")
	}
}

func TestMessagesStopDropsLateSnapshots(t *testing.T) {
	te := newTestEnv()
	path := docstore.Join(ThreadsCollection, "t1")
	te.set(t, path, threadFields("u1", 0))

	m := NewMessages(te.Env, "u1")
	m.Apply(enabled(model.CategoryMessages, t0))
	m.Stop()

	te.update(t, path, incoming("Hi", "s1", t0.Add(time.Minute), 1))
	if got := te.notify.take(); len(got) != 0 {
		t.Errorf("stopped producer notified: %v", got)
	}
}
