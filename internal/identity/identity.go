// Package identity tracks the signed-in user.
package identity

import "sync"

// User is the signed-in account. The zero value means signed out.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// SignedIn reports whether u is a real account.
func (u User) SignedIn() bool {
	return u.ID != ""
}

// Source reports the current user and notifies on changes.
type Source interface {
	Current() User
	Watch(fn func(User)) (cancel func())
}

// Holder is an in-process Source whose user is set explicitly.
type Holder struct {
	mu       sync.Mutex
	user     User
	next     int
	watchers map[int]func(User)
}

// NewHolder creates a Holder signed in as u.
func NewHolder(u User) *Holder {
	return &Holder{user: u, watchers: make(map[int]func(User))}
}

// Current implements Source.
func (h *Holder) Current() User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user
}

// Watch implements Source. fn is not called with the current value.
func (h *Holder) Watch(fn func(User)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.watchers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}

// Set changes the user. Watchers are called only when the ID changes.
func (h *Holder) Set(u User) {
	h.mu.Lock()
	changed := h.user.ID != u.ID
	h.user = u
	fns := make([]func(User), 0, len(h.watchers))
	if changed {
		for _, fn := range h.watchers {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
