package docstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFieldsAccessors(t *testing.T) {
	ts := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	f := Fields{
		"title":     "Desk lamp",
		"price":     int64(15),
		"priceStr":  " 12.5 ",
		"count":     json.Number("3"),
		"sold":      true,
		"postedAt":  ts,
		"createdAt": "2024-09-01T10:00:00Z",
		"updatedAt": float64(ts.UnixMilli()),
		"tags":      []any{"a", 1, "b"},
		"category":  "books",
		"unread":    map[string]any{"u1": 2},
	}

	t.Run("String", func(t *testing.T) {
		got := []string{f.String("title"), f.String("price"), f.String("count"), f.String("sold"), f.String("missing")}
		if diff := cmp.Diff([]string{"Desk lamp", "15", "3", "", ""}, got); diff != "" {
			t.Errorf("String mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Float", func(t *testing.T) {
		tests := []struct {
			path   string
			want   float64
			wantOK bool
		}{
			{path: "price", want: 15, wantOK: true},
			{path: "priceStr", want: 12.5, wantOK: true},
			{path: "count", want: 3, wantOK: true},
			{path: "title", wantOK: false},
			{path: "missing", wantOK: false},
		}
		for _, tt := range tests {
			got, ok := f.Float(tt.path)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Float(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.wantOK)
			}
		}
	})

	t.Run("Int and dotted lookup", func(t *testing.T) {
		if diff := cmp.Diff(2, f.Int("unread.u1")); diff != "" {
			t.Errorf("Int mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(0, f.Int("unread.u2")); diff != "" {
			t.Errorf("Int mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Bool", func(t *testing.T) {
		if v, ok := f.Bool("sold"); !v || !ok {
			t.Errorf("Bool(sold) = %v, %v", v, ok)
		}
		if _, ok := f.Bool("title"); ok {
			t.Error("Bool(title) reported ok for a string")
		}
	})

	t.Run("Time", func(t *testing.T) {
		for _, path := range []string{"postedAt", "createdAt", "updatedAt"} {
			if got := f.Time(path); !got.Equal(ts) {
				t.Errorf("Time(%q) = %v, want %v", path, got, ts)
			}
		}
		if !f.Time("title").IsZero() {
			t.Error("Time(title) should be zero")
		}
	})

	t.Run("Strings", func(t *testing.T) {
		if diff := cmp.Diff([]string{"a", "b"}, f.Strings("tags")); diff != "" {
			t.Errorf("Strings(tags) mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"books"}, f.Strings("category")); diff != "" {
			t.Errorf("Strings(category) mismatch (-want +got):\n%s", diff)
		}
		if f.Strings("missing") != nil {
			t.Error("Strings(missing) should be nil")
		}
	})

	t.Run("Map", func(t *testing.T) {
		if diff := cmp.Diff(Fields{"u1": 2}, f.Map("unread")); diff != "" {
			t.Errorf("Map mismatch (-want +got):\n%s", diff)
		}
		if f.Map("title") != nil {
			t.Error("Map(title) should be nil")
		}
	})
}

func TestFieldsSetAndClone(t *testing.T) {
	f := Fields{"unread": map[string]any{"u1": 1}, "title": "x"}
	c := f.Clone()

	c.Set("unread.u2", 5)
	c.Set("meta.views", 10)
	c.Set("title", "y")

	if diff := cmp.Diff(Fields{"unread": map[string]any{"u1": 1}, "title": "x"}, f); diff != "" {
		t.Errorf("original modified through clone (-want +got):\n%s", diff)
	}
	want := Fields{
		"unread": map[string]any{"u1": 1, "u2": 5},
		"meta":   map[string]any{"views": 10},
		"title":  "y",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Set mismatch (-want +got):\n%s", diff)
	}
}

func TestEqual(t *testing.T) {
	ts := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "int and float", a: 15, b: 15.0, want: true},
		{name: "int32 and int64", a: int32(3), b: int64(3), want: true},
		{name: "different numbers", a: 1, b: 2, want: false},
		{name: "time zones", a: ts, b: ts.In(time.FixedZone("x", 3600)), want: true},
		{name: "string list types", a: []string{"a", "b"}, b: []any{"a", "b"}, want: true},
		{name: "list order", a: []string{"a", "b"}, b: []string{"b", "a"}, want: false},
		{name: "nested maps", a: Fields{"m": map[string]any{"x": 1}}, b: map[string]any{"m": Fields{"x": 1.0}}, want: true},
		{name: "missing key", a: Fields{"a": 1}, b: Fields{"a": 1, "b": 2}, want: false},
		{name: "nil", a: nil, b: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Equal(tt.a, tt.b)); diff != "" {
				t.Errorf("Equal() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
