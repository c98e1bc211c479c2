package loop

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	var got []int
	for i := 0; i < 3; i++ {
		l.Post(func() { got = append(got, i) })
	}
	// Posting from a callback queues behind the current one.
	l.Post(func() {
		l.Post(func() { got = append(got, 99) })
		got = append(got, 3)
	})

	go l.Run(ctx)

	if !l.Call(ctx, func() {}) {
		t.Fatal("Call did not complete")
	}
	var snapshot []int
	l.Call(ctx, func() { snapshot = append(snapshot, got...) })

	want := []int{0, 1, 2, 3, 99}
	if diff := cmp.Diff(want, snapshot); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	ran := false
	l.Post(func() { ran = true })
	if ran {
		t.Error("callback posted after stop ran")
	}

	cctx, ccancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer ccancel()
	if l.Call(cctx, func() {}) {
		t.Error("Call on a stopped loop reported success")
	}
}

func TestInline(t *testing.T) {
	ran := false
	Inline{}.Post(func() { ran = true })
	if !ran {
		t.Error("Inline.Post did not run the callback")
	}
}

func TestCallInline(t *testing.T) {
	ran := false
	if !Call(context.Background(), Inline{}, func() { ran = true }) {
		t.Error("Call = false on an inline dispatcher")
	}
	if !ran {
		t.Error("callback did not run")
	}
}

func TestCallContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// New loop that never runs: the callback stays queued.
	if Call(ctx, New(), func() {}) {
		t.Error("Call = true after ctx ended")
	}
}
