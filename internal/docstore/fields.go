package docstore

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Fields is an opaque document field map.
type Fields map[string]any

// Lookup resolves a dotted field path such as "unread.u1".
func (f Fields) Lookup(path string) (any, bool) {
	var cur any = map[string]any(f)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at path, or "".
func (f Fields) String(path string) string {
	v, ok := f.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64, float32, int, int32, int64:
		n, _ := toFloat(s)
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// Float returns the number at path. Numeric strings are accepted.
func (f Fields) Float(path string) (float64, bool) {
	v, ok := f.Lookup(path)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int returns the integer at path, truncating floats.
func (f Fields) Int(path string) int {
	n, ok := f.Float(path)
	if !ok {
		return 0
	}
	return int(n)
}

// Bool returns the boolean at path and whether it was present and boolean.
func (f Fields) Bool(path string) (bool, bool) {
	v, ok := f.Lookup(path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Time returns the timestamp at path. RFC 3339 strings and unix milliseconds are accepted.
func (f Fields) Time(path string) time.Time {
	v, ok := f.Lookup(path)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	default:
		if ms, ok := toFloat(t); ok {
			return time.UnixMilli(int64(ms)).UTC()
		}
	}
	return time.Time{}
}

// Strings returns a string list at path. A single string is returned as a one-element list.
func (f Fields) Strings(path string) []string {
	v, ok := f.Lookup(path)
	if !ok || v == nil {
		return nil
	}
	switch l := v.(type) {
	case string:
		if l == "" {
			return nil
		}
		return []string{l}
	case []string:
		return append([]string(nil), l...)
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns the nested field map at path.
func (f Fields) Map(path string) Fields {
	v, ok := f.Lookup(path)
	if !ok {
		return nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil
	}
	return Fields(m)
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// Set assigns value at a dotted path, creating intermediate maps.
func (f Fields) Set(path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(f)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]any{}
		}
		cur[part] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Equal compares two field values, treating all numeric types as float64.
func Equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch t := v.(type) {
	case Fields:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case time.Time:
		return t.UTC().UnixNano()
	case string, bool, nil:
		return t
	}
	if n, ok := toFloat(v); ok {
		return n
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Fields:
		return m, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Fields(t).Clone())
	case Fields:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
