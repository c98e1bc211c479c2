package docstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestJoinSplit(t *testing.T) {
	path := Join("users", "u1", "favorites", "l1")
	if diff := cmp.Diff("users/u1/favorites/l1", path); diff != "" {
		t.Errorf("Join mismatch (-want +got):\n%s", diff)
	}
	coll, id := Split(path)
	if diff := cmp.Diff([]string{"users/u1/favorites", "l1"}, []string{coll, id}); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
	coll, id = Split("orphan")
	if diff := cmp.Diff([]string{"", "orphan"}, []string{coll, id}); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}

func doc(id string, f Fields) Document {
	return Document{ID: id, Path: Join("listings", id), Exists: true, Fields: f}
}

func kinds(changes []Change) []string {
	var out []string
	for _, c := range changes {
		out = append(out, string(c.Kind)+":"+c.Doc.ID)
	}
	return out
}

func TestDiffResults(t *testing.T) {
	a := doc("a", Fields{"price": 1})
	b := doc("b", Fields{"price": 2})
	b2 := doc("b", Fields{"price": 3})
	c := doc("c", Fields{"price": 4})

	tests := []struct {
		name string
		prev []Document
		next []Document
		want []string
	}{
		{name: "first result is all added", prev: nil, next: []Document{a, b}, want: []string{"added:a", "added:b"}},
		{name: "no change", prev: []Document{a, b}, next: []Document{a, b}, want: nil},
		{name: "reorder is not a change", prev: []Document{a, b}, next: []Document{b, a}, want: nil},
		{name: "modified", prev: []Document{a, b}, next: []Document{a, b2}, want: []string{"modified:b"}},
		{name: "numeric type change only", prev: []Document{a}, next: []Document{doc("a", Fields{"price": 1.0})}, want: nil},
		{name: "added and removed", prev: []Document{a, b}, next: []Document{b, c}, want: []string{"added:c", "removed:a"}},
		{name: "everything removed", prev: []Document{a}, next: nil, want: []string{"removed:a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, kinds(DiffResults(tt.prev, tt.next))); diff != "" {
				t.Errorf("DiffResults() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
