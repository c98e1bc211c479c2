package activity

import (
	"time"

	"campus_notify/internal/diff"
	"campus_notify/internal/docstore"
	"campus_notify/internal/model"
	"campus_notify/internal/mux"
)

// WatchedListingFields are the listing fields whose change is worth a notification.
var WatchedListingFields = []string{"status", "title", "price", "condition", "location", "description", "sellerName"}

// FavoritesPath returns the collection holding a user's favorited listing ids.
func FavoritesPath(uid string) string {
	return docstore.Join("users", uid, "favorites")
}

// ListingPath returns the document path of a listing.
func ListingPath(id string) string {
	return docstore.Join("listings", id)
}

// Favorites notifies about changes to the listings a user has favorited.
type Favorites struct {
	env Env
	uid string

	running bool
	since   time.Time
	gen     uint64
	unsub   docstore.Unsubscribe
	mux     *mux.Multiplexer
	tracker *diff.Tracker
}

// NewFavorites creates the marketplace-activity producer for uid.
func NewFavorites(env Env, uid string) *Favorites {
	f := &Favorites{
		env:     env,
		uid:     uid,
		tracker: diff.NewTracker(model.KindListing, WatchedListingFields, "status", model.StatusSold),
	}
	f.mux = mux.New(f.watchListing, f.tracker.Forget)
	return f
}

// Apply implements Producer.
func (f *Favorites) Apply(st model.PreferenceState) {
	on := st.Enabled(model.CategoryMarketplaceActivity)
	switch {
	case on && !f.running:
		f.start(st.Since(model.CategoryMarketplaceActivity))
	case !on && f.running:
		f.Stop()
	}
}

// Stop implements Producer.
func (f *Favorites) Stop() {
	f.gen++
	if f.unsub != nil {
		f.unsub()
		f.unsub = nil
	}
	f.mux.Reset()
	f.tracker.Reset()
	f.running = false
}

// Watching returns the listing ids with a live watcher.
func (f *Favorites) Watching() []string {
	return f.mux.Keys()
}

func (f *Favorites) start(since time.Time) {
	f.gen++
	f.running = true
	f.since = since
	gen := f.gen

	f.unsub = f.env.Store.WatchQuery(docstore.Query{Collection: FavoritesPath(f.uid)},
		func(snap docstore.QuerySnapshot) {
			f.env.Dispatch.Post(func() {
				if gen != f.gen {
					return
				}
				f.onFavorites(snap)
			})
		},
		func(err error) {
			f.env.Dispatch.Post(func() {
				if gen != f.gen {
					return
				}
				f.env.Log.Error("watch favorites", "user_id", f.uid, "error", err)
			})
		},
	)
	f.env.Log.Debug("favorites producer started", "user_id", f.uid)
}

func (f *Favorites) onFavorites(snap docstore.QuerySnapshot) {
	ids := make([]string, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		id := d.Fields.String("listingId")
		if id == "" {
			id = d.ID
		}
		ids = append(ids, id)
	}
	started, stopped := f.mux.Sync(ids)
	if started > 0 || stopped > 0 {
		f.env.Log.Debug("favorites synced", "user_id", f.uid, "started", started, "stopped", stopped)
	}
}

func (f *Favorites) watchListing(id string) func() {
	gen := f.gen
	alive := true
	unsub := f.env.Store.WatchDoc(ListingPath(id),
		func(doc docstore.Document) {
			f.env.Dispatch.Post(func() {
				if !alive || gen != f.gen {
					return
				}
				f.onListing(id, doc)
			})
		},
		func(err error) {
			f.env.Dispatch.Post(func() {
				if !alive || gen != f.gen {
					return
				}
				f.env.Log.Error("watch listing", "listing_id", id, "error", err)
			})
		},
	)
	return func() {
		alive = false
		unsub()
	}
}

func (f *Favorites) onListing(id string, doc docstore.Document) {
	ev := f.tracker.Observe(id, doc)
	key := MessageKey("favorites", f.uid)

	switch ev.Kind {
	case diff.EventNone:
		return
	case diff.EventTerminal:
		l := ListingFromDoc(doc)
		f.env.Notify.Show(model.Message{
			Key:   key,
			Title: "Item sold",
			Body:  quoted(l.Title, "A favorited listing") + " was marked as sold.",
		})
	case diff.EventRemoved:
		prev := ListingFromDoc(docstore.Document{ID: id, Exists: true, Fields: ev.Prev})
		f.env.Notify.Show(model.Message{
			Key:   key,
			Title: "Listing removed",
			Body:  quoted(prev.Title, "A favorited listing") + " is no longer available.",
		})
	case diff.EventChange:
		l := ListingFromDoc(doc)
		if !l.UpdatedAt.IsZero() && l.UpdatedAt.Before(f.since) {
			f.env.Log.Debug("stale listing change suppressed", "listing_id", id)
			return
		}
		f.env.Notify.Show(model.Message{
			Key:   key,
			Title: "Favorite updated",
			Body:  describeChange(l, ev.Changed),
		})
	}
}

func quoted(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return "\"" + s + "\""
}
