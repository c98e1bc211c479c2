// Package mux keeps exactly one live watcher per key of a changing key set.
package mux

import "sort"

// StartFunc starts a watcher for key and returns the function that stops it.
type StartFunc func(key string) (stop func())

// Multiplexer reconciles running watchers against a desired key set.
// It is not safe for concurrent use.
type Multiplexer struct {
	start    StartFunc
	onStop   func(key string)
	watchers map[string]func()
}

// New creates an empty Multiplexer. onStop, if non-nil, runs after a key's watcher is stopped.
func New(start StartFunc, onStop func(key string)) *Multiplexer {
	return &Multiplexer{
		start:    start,
		onStop:   onStop,
		watchers: map[string]func(){},
	}
}

// Sync starts a watcher for every new key and stops every watcher whose key is gone.
// Calling it again with an unchanged set does nothing.
func (m *Multiplexer) Sync(keys []string) (started, stopped int) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	for _, k := range m.Keys() {
		if _, ok := want[k]; ok {
			continue
		}
		m.stop(k)
		stopped++
	}

	for _, k := range keys {
		if _, running := m.watchers[k]; running {
			continue
		}
		stop := m.start(k)
		if stop == nil {
			stop = func() {}
		}
		m.watchers[k] = stop
		started++
	}
	return started, stopped
}

// Reset stops every watcher and forgets the key set.
func (m *Multiplexer) Reset() int {
	n := 0
	for _, k := range m.Keys() {
		m.stop(k)
		n++
	}
	return n
}

// Keys returns the watched keys in sorted order.
func (m *Multiplexer) Keys() []string {
	keys := make([]string, 0, len(m.watchers))
	for k := range m.watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of live watchers.
func (m *Multiplexer) Len() int {
	return len(m.watchers)
}

func (m *Multiplexer) stop(key string) {
	stop := m.watchers[key]
	delete(m.watchers, key)
	stop()
	if m.onStop != nil {
		m.onStop(key)
	}
}
