package activity

import (
	"campus_notify/internal/docstore"
	"campus_notify/internal/filter"
	"campus_notify/internal/model"
)

// DefaultPageSize is the size of the recency-ordered listing feed.
const DefaultPageSize = 20

// ListingsCollection holds every listing.
const ListingsCollection = "listings"

// Recommendations surfaces freshly posted or edited listings that match the user's filter.
type Recommendations struct {
	env      Env
	uid      string
	pageSize int

	running bool
	gen     uint64
	unsub   docstore.Unsubscribe
	matcher *filter.Matcher
}

// NewRecommendations creates the recommendation producer for uid.
func NewRecommendations(env Env, uid string, pageSize int) *Recommendations {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Recommendations{env: env, uid: uid, pageSize: pageSize}
}

// Apply implements Producer. A filter change keeps the already-shown set; a
// disable/enable cycle starts over with a fresh matcher.
func (r *Recommendations) Apply(st model.PreferenceState) {
	on := st.Enabled(model.CategoryRecommendations)
	switch {
	case on && !r.running:
		r.start(st)
	case on && r.running:
		r.matcher.SetFilter(st.Filter)
	case !on && r.running:
		r.Stop()
	}
}

// Stop implements Producer.
func (r *Recommendations) Stop() {
	r.gen++
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	r.matcher = nil
	r.running = false
}

// Matcher exposes the current cycle's matcher (nil while disabled).
func (r *Recommendations) Matcher() *filter.Matcher {
	return r.matcher
}

func (r *Recommendations) start(st model.PreferenceState) {
	r.gen++
	r.running = true
	r.matcher = filter.NewMatcher(r.uid, st.Since(model.CategoryRecommendations), st.Filter)
	gen := r.gen

	q := docstore.Query{Collection: ListingsCollection, OrderBy: "postedAt", Desc: true, Limit: r.pageSize}
	r.unsub = r.env.Store.WatchQuery(q,
		func(snap docstore.QuerySnapshot) {
			r.env.Dispatch.Post(func() {
				if gen != r.gen {
					return
				}
				r.onFeed(snap)
			})
		},
		func(err error) {
			r.env.Dispatch.Post(func() {
				if gen != r.gen {
					return
				}
				r.env.Log.Error("watch listing feed", "user_id", r.uid, "error", err)
			})
		},
	)
}

func (r *Recommendations) onFeed(snap docstore.QuerySnapshot) {
	cands := make([]filter.Candidate, 0, len(snap.Changes))
	for _, c := range snap.Changes {
		var kind filter.Kind
		switch c.Kind {
		case docstore.ChangeAdded:
			kind = filter.Added
		case docstore.ChangeModified:
			kind = filter.Modified
		default:
			continue
		}
		cands = append(cands, filter.Candidate{Kind: kind, Listing: ListingFromDoc(c.Doc)})
	}

	for _, l := range r.matcher.Batch(cands) {
		r.env.Log.Debug("recommend listing", "user_id", r.uid, "listing_id", l.ID)
		body := l.Title
		if l.Price > 0 {
			body += " · " + FormatPrice(l.Price)
		}
		r.env.Notify.Show(model.Message{
			Key:   MessageKey("recommendations", r.uid),
			Title: "Recommended for you",
			Body:  body,
		})
	}
}
