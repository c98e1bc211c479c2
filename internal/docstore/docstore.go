// Package docstore defines the push-based remote document store the engine watches,
// with an in-process and a MongoDB implementation.
package docstore

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// Document is a point-in-time read of one document.
type Document struct {
	ID     string
	Path   string
	Exists bool
	Fields Fields
}

// ChangeKind classifies a change record inside a query snapshot.
type ChangeKind string

// Change kinds.
const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one document change reported by a query watcher.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// QuerySnapshot is the full ordered result of a query plus the changes since the previous snapshot.
type QuerySnapshot struct {
	Docs    []Document
	Changes []Change
}

// Op is a query condition operator.
type Op string

// Supported operators.
const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Cond is a single where-clause.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Where      []Cond
	OrderBy    string
	Desc       bool
	Limit      int
}

// Unsubscribe cancels a watcher. It is safe to call more than once.
type Unsubscribe func()

// Store is the remote real-time document store.
type Store interface {
	WatchDoc(path string, onSnap func(Document), onErr func(error)) Unsubscribe
	WatchQuery(q Query, onSnap func(QuerySnapshot), onErr func(error)) Unsubscribe
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, data Fields, merge bool) error
	Update(ctx context.Context, path string, fields Fields) error
	Delete(ctx context.Context, path string) error
}

// Join builds a document path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection path and the id of a document path.
func Split(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// DiffResults computes the change records between two ordered query results.
func DiffResults(prev, next []Document) []Change {
	old := make(map[string]Document, len(prev))
	for _, d := range prev {
		old[d.Path] = d
	}

	var changes []Change
	seen := make(map[string]bool, len(next))
	for _, d := range next {
		seen[d.Path] = true
		p, ok := old[d.Path]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, Doc: d})
		case !Equal(p.Fields, d.Fields):
			changes = append(changes, Change{Kind: ChangeModified, Doc: d})
		}
	}
	for _, d := range prev {
		if !seen[d.Path] {
			changes = append(changes, Change{Kind: ChangeRemoved, Doc: d})
		}
	}
	return changes
}
