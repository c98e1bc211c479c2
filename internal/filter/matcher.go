package filter

import (
	"time"

	"campus_notify/internal/model"
)

// Kind is the change type of a feed record.
type Kind int

// Feed record kinds.
const (
	Added Kind = iota
	Modified
)

// Candidate is one changed listing from the recency-ordered feed.
type Candidate struct {
	Kind    Kind
	Listing model.Listing
}

// Matcher turns feed batches into recommendations for one user and one enable cycle.
// A new Matcher must be created when recommendations are re-enabled.
type Matcher struct {
	uid      string
	since    time.Time
	filter   model.RecommendationFilter
	shown    map[string]struct{}
	hydrated bool
}

// NewMatcher creates a Matcher; since is the enablement timestamp of recommendations.
func NewMatcher(uid string, since time.Time, f model.RecommendationFilter) *Matcher {
	return &Matcher{
		uid:    uid,
		since:  since,
		filter: f,
		shown:  map[string]struct{}{},
	}
}

// SetFilter replaces the filter. Already shown ids stay shown.
func (m *Matcher) SetFilter(f model.RecommendationFilter) {
	m.filter = f
}

// Evaluate classifies a candidate without recording it.
func (m *Matcher) Evaluate(c Candidate) Reason {
	l := c.Listing
	if l.SellerID != "" && l.SellerID == m.uid {
		return RejectOwn
	}
	if l.Status == model.StatusSold {
		return RejectSold
	}
	// Edits are relevant immediately; only fresh additions must postdate enablement.
	if c.Kind == Added && !l.PostedAt.IsZero() && l.PostedAt.Before(m.since) {
		return RejectStale
	}
	if r := Match(l, m.filter); r != Accepted {
		return r
	}
	if _, ok := m.shown[l.ID]; ok {
		return RejectShown
	}
	return Accepted
}

// Batch consumes one feed batch and returns the listings to recommend, in batch order.
// The first batch only hydrates the matcher.
func (m *Matcher) Batch(cands []Candidate) []model.Listing {
	if !m.hydrated {
		m.hydrated = true
		return nil
	}

	var out []model.Listing
	for _, c := range cands {
		if m.Evaluate(c) != Accepted {
			continue
		}
		m.shown[c.Listing.ID] = struct{}{}
		out = append(out, c.Listing)
	}
	return out
}

// Shown reports whether id was already recommended in this cycle.
func (m *Matcher) Shown(id string) bool {
	_, ok := m.shown[id]
	return ok
}

// ShownCount returns how many listings were recommended in this cycle.
func (m *Matcher) ShownCount() int {
	return len(m.shown)
}

// Hydrated reports whether the first batch has been consumed.
func (m *Matcher) Hydrated() bool {
	return m.hydrated
}
