// Package draft persists unpublished listings and nudges the user to finish them.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"campus_notify/internal/clock"
	"campus_notify/internal/model"
	"campus_notify/internal/storage"
)

// Key returns the local storage key of a user's draft.
func Key(uid string) string {
	return "draft:" + uid
}

type record struct {
	Title          string   `json:"title"`
	Categories     []string `json:"categories"`
	Condition      string   `json:"condition"`
	Price          string   `json:"price"`
	Description    string   `json:"description"`
	Images         []string `json:"images"`
	Location       string   `json:"location"`
	SavedAt        int64    `json:"savedAt"`
	LastReminderAt *int64   `json:"lastReminderAt,omitempty"`
}

// Repo stores one DraftRecord per user in a KV store. Its methods are serialized,
// so a read-modify-write such as MarkReminded never overwrites a concurrent
// Save, Clear or Publish.
type Repo struct {
	mu    sync.Mutex
	kv    storage.KV
	clock clock.Clock
}

// NewRepo creates a Repo.
func NewRepo(kv storage.KV, c clock.Clock) *Repo {
	return &Repo{kv: kv, clock: c}
}

// Load returns the user's draft, or nil if none is saved.
func (r *Repo) Load(ctx context.Context, uid string) (*model.DraftRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, uid)
}

func (r *Repo) load(ctx context.Context, uid string) (*model.DraftRecord, error) {
	raw, ok, err := r.kv.Get(ctx, Key(uid))
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return nil, nil
	}
	rec := Parse(raw)
	return &rec, nil
}

// Save overwrites the user's draft, stamping SavedAt and clearing the reminder stamp.
func (r *Repo) Save(ctx context.Context, uid string, d model.DraftRecord) (model.DraftRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.SavedAt = r.clock.Now()
	d.LastReminderAt = nil
	if err := r.write(ctx, uid, d); err != nil {
		return model.DraftRecord{}, err
	}
	return d, nil
}

// Clear deletes the user's draft.
func (r *Repo) Clear(ctx context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clear(ctx, uid)
}

func (r *Repo) clear(ctx context.Context, uid string) error {
	if err := r.kv.Remove(ctx, Key(uid)); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// MarkReminded stamps LastReminderAt. A missing draft is left alone.
func (r *Repo) MarkReminded(ctx context.Context, uid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.load(ctx, uid)
	if err != nil || d == nil {
		return err
	}
	d.LastReminderAt = &at
	return r.write(ctx, uid, *d)
}

func (r *Repo) write(ctx context.Context, uid string, d model.DraftRecord) error {
	rec := record{
		Title:       d.Title,
		Categories:  d.Categories,
		Condition:   d.Condition,
		Price:       d.Price,
		Description: d.Description,
		Images:      d.Images,
		Location:    d.Location,
		SavedAt:     d.SavedAt.UnixMilli(),
	}
	if d.LastReminderAt != nil {
		ms := d.LastReminderAt.UnixMilli()
		rec.LastReminderAt = &ms
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := r.kv.Set(ctx, Key(uid), string(data)); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Parse decodes a stored draft field by field. A field that is missing or has the
// wrong shape falls back to its zero value instead of failing the whole record.
func Parse(raw string) model.DraftRecord {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return model.DraftRecord{}
	}

	d := model.DraftRecord{
		Title:       parseString(fields["title"]),
		Categories:  parseStrings(fields["categories"]),
		Condition:   parseString(fields["condition"]),
		Price:       parseString(fields["price"]),
		Description: parseString(fields["description"]),
		Images:      parseStrings(fields["images"]),
		Location:    parseString(fields["location"]),
		SavedAt:     parseTime(fields["savedAt"]),
	}
	if len(d.Categories) == 0 {
		d.Categories = parseStrings(fields["category"])
	}
	if t := parseTime(fields["lastReminderAt"]); !t.IsZero() {
		d.LastReminderAt = &t
	}
	return d
}

func parseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		if s := parseString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseTime accepts unix milliseconds (number or numeric string) and RFC 3339 strings.
func parseTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if ms, err := n.Int64(); err == nil && ms > 0 {
			return time.UnixMilli(ms)
		}
		return time.Time{}
	}
	s := parseString(raw)
	if s == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
