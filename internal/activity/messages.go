package activity

import (
	"errors"
	"strconv"
	"time"

	"campus_notify/internal/docstore"
	"campus_notify/internal/model"
)

// ThreadsCollection holds every chat thread; reading it requires participant queries.
const ThreadsCollection = "threads"

// InboxPath is the per-user thread index used when the shared collection is not readable.
func InboxPath(uid string) string {
	return docstore.Join("users", uid, "threads")
}

// Messages notifies about new unread chat messages.
type Messages struct {
	env Env
	uid string

	running  bool
	since    time.Time
	gen      uint64
	unsub    docstore.Unsubscribe
	fallback bool
	hydrated bool
	unread   map[string]int
}

// NewMessages creates the chat producer for uid.
func NewMessages(env Env, uid string) *Messages {
	return &Messages{env: env, uid: uid, unread: map[string]int{}}
}

// Apply implements Producer.
func (m *Messages) Apply(st model.PreferenceState) {
	on := st.Enabled(model.CategoryMessages)
	switch {
	case on && !m.running:
		m.running = true
		m.since = st.Since(model.CategoryMessages)
		m.fallback = false
		m.subscribe()
	case !on && m.running:
		m.Stop()
	}
}

// Stop implements Producer.
func (m *Messages) Stop() {
	m.release()
	m.running = false
	m.fallback = false
}

// Unread returns the remembered unread count of a thread.
func (m *Messages) Unread(threadID string) (int, bool) {
	n, ok := m.unread[threadID]
	return n, ok
}

// UsingFallback reports whether the producer reads the per-user inbox.
func (m *Messages) UsingFallback() bool {
	return m.fallback
}

func (m *Messages) release() {
	m.gen++
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.hydrated = false
	clear(m.unread)
}

func (m *Messages) subscribe() {
	m.release()
	gen := m.gen

	q := docstore.Query{
		Collection: ThreadsCollection,
		Where:      []docstore.Cond{{Field: "participants", Op: docstore.OpArrayContains, Value: m.uid}},
	}
	if m.fallback {
		q = docstore.Query{Collection: InboxPath(m.uid)}
	}

	unsub := m.env.Store.WatchQuery(q,
		func(snap docstore.QuerySnapshot) {
			m.env.Dispatch.Post(func() {
				if gen != m.gen {
					return
				}
				m.onThreads(snap)
			})
		},
		func(err error) {
			m.env.Dispatch.Post(func() {
				if gen != m.gen {
					return
				}
				m.onError(err)
			})
		},
	)
	// The watch may have failed over to the inbox before WatchQuery returned.
	if gen != m.gen {
		unsub()
		return
	}
	m.unsub = unsub
}

func (m *Messages) onError(err error) {
	if errors.Is(err, docstore.ErrPermissionDenied) && !m.fallback {
		m.env.Log.Warn("thread query denied, falling back to inbox", "user_id", m.uid, "error", err)
		m.fallback = true
		m.subscribe()
		return
	}
	m.env.Log.Error("watch threads", "user_id", m.uid, "fallback", m.fallback, "error", err)
}

func (m *Messages) onThreads(snap docstore.QuerySnapshot) {
	if !m.hydrated {
		for _, d := range snap.Docs {
			m.unread[d.ID] = ThreadFromDoc(d, m.uid).Unread
		}
		m.hydrated = true
		return
	}

	present := make(map[string]bool, len(snap.Docs))
	for _, d := range snap.Docs {
		present[d.ID] = true
		t := ThreadFromDoc(d, m.uid)
		prev, known := m.unread[t.ID]
		m.unread[t.ID] = t.Unread

		if t.Unread <= prev || (!known && t.Unread == 0) {
			continue
		}
		if m.suppressed(t) {
			continue
		}
		m.env.Notify.Show(m.message(t))
	}
	for id := range m.unread {
		if !present[id] {
			delete(m.unread, id)
		}
	}
}

func (m *Messages) suppressed(t model.Thread) bool {
	if t.LastSenderID != "" && t.LastSenderID == m.uid {
		return true
	}
	if !t.LastMessageAt.IsZero() && t.LastMessageAt.Before(m.since) {
		m.env.Log.Debug("historical message suppressed", "thread_id", t.ID)
		return true
	}
	if s := m.env.screen(); s.Name == model.ScreenChat && s.Param == t.ID {
		return true
	}
	return false
}

func (m *Messages) message(t model.Thread) model.Message {
	title := "New message"
	if t.SellerName != "" {
		title = "New message from " + t.SellerName
	}
	body := t.LastMessage
	if body == "" {
		body = "You have " + strconv.Itoa(t.Unread) + " unread messages"
	}
	if t.Title != "" {
		body = t.Title + ": " + body
	}
	return model.Message{Key: MessageKey("messages", m.uid), Title: title, Body: body}
}
