package delivery

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"campus_notify/internal/clock"
	"campus_notify/internal/loop"
	"campus_notify/internal/model"
)

type recordingRenderer struct {
	events []string
}

func (r *recordingRenderer) Show(msg model.Message) { r.events = append(r.events, "show:"+msg.Title) }
func (r *recordingRenderer) Hide(msg model.Message) { r.events = append(r.events, "hide:"+msg.Title) }

func newTestChannel(ttl time.Duration) (*Channel, *recordingRenderer, *clock.Fake) {
	r := &recordingRenderer{}
	c := clock.NewFake(time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(r, c, loop.Inline{}, ttl, log), r, c
}

func TestChannelAutoHide(t *testing.T) {
	ch, r, c := newTestChannel(0)

	ch.Show(model.Message{Key: "k", Title: "A"})
	got, ok := ch.Active()
	if !ok || got.TTL != DefaultTTL {
		t.Fatalf("Active() = %+v, %v; want A with default TTL", got, ok)
	}

	c.Advance(DefaultTTL - time.Millisecond)
	if _, ok := ch.Active(); !ok {
		t.Fatal("message hidden before its TTL")
	}
	c.Advance(time.Millisecond)
	if _, ok := ch.Active(); ok {
		t.Fatal("message still active after its TTL")
	}

	if diff := cmp.Diff([]string{"show:A", "hide:A"}, r.events); diff != "" {
		t.Errorf("render events mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelReplaceRestartsCountdown(t *testing.T) {
	ch, r, c := newTestChannel(3 * time.Second)

	ch.Show(model.Message{Key: "k1", Title: "A"})
	c.Advance(2 * time.Second)
	ch.Show(model.Message{Key: "k2", Title: "B"})

	// A's old timer must not hide B.
	c.Advance(2 * time.Second)
	got, ok := ch.Active()
	if !ok || got.Title != "B" {
		t.Fatalf("Active() = %+v, %v; want B", got, ok)
	}

	c.Advance(time.Second)
	if _, ok := ch.Active(); ok {
		t.Fatal("B still active after its TTL")
	}

	want := []string{"show:A", "hide:A", "show:B", "hide:B"}
	if diff := cmp.Diff(want, r.events); diff != "" {
		t.Errorf("render events mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelPerMessageTTL(t *testing.T) {
	ch, _, c := newTestChannel(time.Second)

	ch.Show(model.Message{Key: "draft:u1", Title: "Reminder", TTL: 8 * time.Second})
	c.Advance(5 * time.Second)
	if _, ok := ch.Active(); !ok {
		t.Fatal("message with a longer TTL hidden early")
	}
	c.Advance(3 * time.Second)
	if _, ok := ch.Active(); ok {
		t.Fatal("message still active after its own TTL")
	}
}

func TestChannelDismiss(t *testing.T) {
	ch, r, c := newTestChannel(time.Second)

	ch.Dismiss()
	if len(r.events) != 0 {
		t.Fatalf("Dismiss on an empty channel rendered %v", r.events)
	}

	ch.Show(model.Message{Key: "k1", Title: "A"})
	if ch.DismissKey("other") {
		t.Error("DismissKey with a foreign key hid the message")
	}
	if !ch.DismissKey("k1") {
		t.Error("DismissKey with the owner's key returned false")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after dismiss, want 0", c.Pending())
	}

	ch.Show(model.Message{Key: "k2", Title: "B"})
	ch.Dismiss()
	c.Advance(time.Minute)

	want := []string{"show:A", "hide:A", "show:B", "hide:B"}
	if diff := cmp.Diff(want, r.events); diff != "" {
		t.Errorf("render events mismatch (-want +got):\n%s", diff)
	}
}
