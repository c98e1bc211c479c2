package mux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	log []string
}

func (r *recorder) start(key string) func() {
	r.log = append(r.log, "start:"+key)
	return func() { r.log = append(r.log, "stop:"+key) }
}

func (r *recorder) take() []string {
	out := r.log
	r.log = nil
	return out
}

func TestMultiplexerSync(t *testing.T) {
	r := &recorder{}
	var stopped []string
	m := New(r.start, func(key string) { stopped = append(stopped, key) })

	steps := []struct {
		keys        []string
		wantLog     []string
		wantStarted int
		wantStopped int
		wantKeys    []string
	}{
		{
			keys:        []string{"a", "b"},
			wantLog:     []string{"start:a", "start:b"},
			wantStarted: 2,
			wantKeys:    []string{"a", "b"},
		},
		{
			keys:     []string{"b", "a"},
			wantKeys: []string{"a", "b"},
		},
		{
			keys:        []string{"b", "c"},
			wantLog:     []string{"stop:a", "start:c"},
			wantStarted: 1,
			wantStopped: 1,
			wantKeys:    []string{"b", "c"},
		},
		{
			keys:        []string{"c", "c"},
			wantLog:     []string{"stop:b"},
			wantStopped: 1,
			wantKeys:    []string{"c"},
		},
		{
			keys:        nil,
			wantLog:     []string{"stop:c"},
			wantStopped: 1,
			wantKeys:    []string{},
		},
	}

	for i, s := range steps {
		started, stoppedN := m.Sync(s.keys)
		if started != s.wantStarted || stoppedN != s.wantStopped {
			t.Errorf("step %d: Sync = (%d, %d), want (%d, %d)", i, started, stoppedN, s.wantStarted, s.wantStopped)
		}
		if diff := cmp.Diff(s.wantLog, r.take()); diff != "" {
			t.Errorf("step %d: watcher log mismatch (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(s.wantKeys, m.Keys()); diff != "" {
			t.Errorf("step %d: keys mismatch (-want +got):\n%s", i, diff)
		}
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, stopped); diff != "" {
		t.Errorf("onStop calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiplexerReset(t *testing.T) {
	r := &recorder{}
	m := New(r.start, nil)
	m.Sync([]string{"x", "y"})
	r.take()

	if n := m.Reset(); n != 2 {
		t.Errorf("Reset() = %d, want 2", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after reset", m.Len())
	}
	if diff := cmp.Diff([]string{"stop:x", "stop:y"}, r.take()); diff != "" {
		t.Errorf("watcher log mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiplexerNilStop(t *testing.T) {
	m := New(func(string) func() { return nil }, nil)
	m.Sync([]string{"a"})
	// Must not panic.
	m.Sync(nil)
}
