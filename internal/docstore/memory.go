package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store. Snapshots are delivered synchronously on the
// writing goroutine, in write order; a callback that writes back into the store
// has its own notifications queued behind the current one.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]Fields
	docW     map[string]map[uint64]*docWatcher
	queryW   map[uint64]*queryWatcher
	errs     map[string]error
	seq      uint64
	pending  []func()
	draining bool
}

type docWatcher struct {
	onSnap func(Document)
	onErr  func(error)
	active bool
}

type queryWatcher struct {
	q      Query
	onSnap func(QuerySnapshot)
	onErr  func(error)
	last   []Document
	active bool
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		docs:   map[string]Fields{},
		docW:   map[string]map[uint64]*docWatcher{},
		queryW: map[uint64]*queryWatcher{},
		errs:   map[string]error{},
	}
}

// InjectError makes reads and new watches of a document path or collection fail with err.
// A nil err clears the injection.
func (m *Memory) InjectError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, path)
		return
	}
	m.errs[path] = err
}

// FailWatchers reports err to every active watcher of a document path or collection.
func (m *Memory) FailWatchers(path string, err error) {
	m.mu.Lock()
	for _, w := range m.docW[path] {
		m.pending = append(m.pending, func() {
			if m.isActive(&w.active) {
				w.onErr(err)
			}
		})
	}
	for _, w := range m.queryW {
		if w.q.Collection != path {
			continue
		}
		m.pending = append(m.pending, func() {
			if m.isActive(&w.active) {
				w.onErr(err)
			}
		})
	}
	m.mu.Unlock()
	m.drain()
}

// WatchDoc implements Store.
func (m *Memory) WatchDoc(path string, onSnap func(Document), onErr func(error)) Unsubscribe {
	m.mu.Lock()
	if err := m.errs[path]; err != nil {
		m.pending = append(m.pending, func() { onErr(fmt.Errorf("watch %s: %w", path, err)) })
		m.mu.Unlock()
		m.drain()
		return func() {}
	}

	m.seq++
	id := m.seq
	w := &docWatcher{onSnap: onSnap, onErr: onErr, active: true}
	if m.docW[path] == nil {
		m.docW[path] = map[uint64]*docWatcher{}
	}
	m.docW[path][id] = w
	m.enqueueDocLocked(w, m.docLocked(path))
	m.mu.Unlock()
	m.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			w.active = false
			delete(m.docW[path], id)
			if len(m.docW[path]) == 0 {
				delete(m.docW, path)
			}
			m.mu.Unlock()
		})
	}
}

// WatchQuery implements Store.
func (m *Memory) WatchQuery(q Query, onSnap func(QuerySnapshot), onErr func(error)) Unsubscribe {
	m.mu.Lock()
	if err := m.errs[q.Collection]; err != nil {
		m.pending = append(m.pending, func() { onErr(fmt.Errorf("watch %s: %w", q.Collection, err)) })
		m.mu.Unlock()
		m.drain()
		return func() {}
	}

	m.seq++
	id := m.seq
	w := &queryWatcher{q: q, onSnap: onSnap, onErr: onErr, active: true}
	m.queryW[id] = w
	w.last = m.runQueryLocked(q)
	snap := QuerySnapshot{Docs: w.last, Changes: DiffResults(nil, w.last)}
	m.pending = append(m.pending, func() {
		if m.isActive(&w.active) {
			w.onSnap(snap)
		}
	})
	m.mu.Unlock()
	m.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			w.active = false
			delete(m.queryW, id)
			m.mu.Unlock()
		})
	}
}

// Get implements Store. A missing document is returned with Exists=false.
func (m *Memory) Get(_ context.Context, path string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[path]; err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return m.docLocked(path), nil
}

// Set implements Store. With merge, nested maps are merged into the existing document.
func (m *Memory) Set(_ context.Context, path string, data Fields, merge bool) error {
	m.mu.Lock()
	if err := m.errs[path]; err != nil {
		m.mu.Unlock()
		return fmt.Errorf("set %s: %w", path, err)
	}
	cur, ok := m.docs[path]
	if merge && ok {
		mergeInto(cur, data.Clone())
	} else {
		m.docs[path] = data.Clone()
	}
	m.notifyLocked(path)
	m.mu.Unlock()
	m.drain()
	return nil
}

// Update implements Store. Keys may be dotted field paths.
func (m *Memory) Update(_ context.Context, path string, fields Fields) error {
	m.mu.Lock()
	if err := m.errs[path]; err != nil {
		m.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, err)
	}
	cur, ok := m.docs[path]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	for k, v := range fields {
		cur.Set(k, cloneValue(v))
	}
	m.notifyLocked(path)
	m.mu.Unlock()
	m.drain()
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	if err := m.errs[path]; err != nil {
		m.mu.Unlock()
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if _, ok := m.docs[path]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.docs, path)
	m.notifyLocked(path)
	m.mu.Unlock()
	m.drain()
	return nil
}

func (m *Memory) docLocked(path string) Document {
	_, id := Split(path)
	f, ok := m.docs[path]
	if !ok {
		return Document{ID: id, Path: path}
	}
	return Document{ID: id, Path: path, Exists: true, Fields: f.Clone()}
}

func (m *Memory) enqueueDocLocked(w *docWatcher, doc Document) {
	m.pending = append(m.pending, func() {
		if m.isActive(&w.active) {
			w.onSnap(doc)
		}
	})
}

func (m *Memory) notifyLocked(path string) {
	doc := m.docLocked(path)
	for _, w := range m.docW[path] {
		m.enqueueDocLocked(w, doc)
	}

	collection, _ := Split(path)
	for _, w := range m.queryW {
		if w.q.Collection != collection {
			continue
		}
		next := m.runQueryLocked(w.q)
		changes := DiffResults(w.last, next)
		if len(changes) == 0 {
			continue
		}
		w.last = next
		snap := QuerySnapshot{Docs: next, Changes: changes}
		m.pending = append(m.pending, func() {
			if m.isActive(&w.active) {
				w.onSnap(snap)
			}
		})
	}
}

func (m *Memory) runQueryLocked(q Query) []Document {
	var out []Document
	for path, f := range m.docs {
		collection, id := Split(path)
		if collection != q.Collection || !matchesAll(f, q.Where) {
			continue
		}
		out = append(out, Document{ID: id, Path: path, Exists: true, Fields: f.Clone()})
	}
	sortDocs(out, q.OrderBy, q.Desc)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (m *Memory) isActive(flag *bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *flag
}

func (m *Memory) drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		fn := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func matchesAll(f Fields, conds []Cond) bool {
	for _, c := range conds {
		v, ok := f.Lookup(c.Field)
		if !ok {
			return false
		}
		switch c.Op {
		case OpEqual:
			if !Equal(v, c.Value) {
				return false
			}
		case OpArrayContains:
			found := false
			items := Fields{"v": v}.Strings("v")
			for _, item := range items {
				if Equal(item, c.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortDocs(docs []Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		if field != "" {
			if c := compareField(docs[i].Fields, docs[j].Fields, field); c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].Path < docs[j].Path
	})
}

func compareField(a, b Fields, field string) int {
	ta, tb := a.Time(field), b.Time(field)
	if !ta.IsZero() || !tb.IsZero() {
		return compareTime(ta, tb)
	}
	na, okA := a.Float(field)
	nb, okB := b.Float(field)
	if okA && okB {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	return strings.Compare(a.String(field), b.String(field))
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func mergeInto(dst, src Fields) {
	for k, v := range src {
		if sm, ok := asMap(v); ok {
			if dm, ok := asMap(dst[k]); ok {
				mergeInto(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}
