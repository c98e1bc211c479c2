// Package scheduler runs the periodic background jobs: the listing feed importer
// and the draft reminder checks.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"campus_notify/internal/activity"
	"campus_notify/internal/docstore"
	"campus_notify/internal/fetcher"
	"campus_notify/internal/storage"
)

// Importer periodically pulls a classifieds feed and publishes unseen items as listings.
type Importer struct {
	store   docstore.Store
	ledger  storage.SeenLedger
	fetcher *fetcher.Fetcher
	url     string
	log     *slog.Logger
	tick    time.Duration
	now     func() time.Time
}

// NewImporter creates an Importer with the default HTTP client.
func NewImporter(store docstore.Store, ledger storage.SeenLedger, url string, log *slog.Logger) *Importer {
	return NewImporterWithFetcher(store, ledger, fetcher.New(http.DefaultClient), url, log)
}

// NewImporterWithFetcher creates an Importer with a custom fetcher (useful for testing).
func NewImporterWithFetcher(store docstore.Store, ledger storage.SeenLedger, f *fetcher.Fetcher, url string, log *slog.Logger) *Importer {
	return &Importer{
		store:   store,
		ledger:  ledger,
		fetcher: f,
		url:     url,
		log:     log,
		tick:    15 * time.Minute,
		now:     time.Now,
	}
}

// SetTickInterval overrides the default 15-minute import interval.
func (im *Importer) SetTickInterval(d time.Duration) {
	im.tick = d
}

// Run starts the import loop, blocking until ctx is cancelled.
func (im *Importer) Run(ctx context.Context) {
	im.importOnce(ctx)

	ticker := time.NewTicker(im.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			im.importOnce(ctx)
		}
	}
}

func (im *Importer) importOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	im.log.Debug("importing listing feed", "url", im.url)

	feed, err := im.fetcher.Fetch(ctx, im.url)
	if err != nil {
		im.log.Error("fetch listing feed", "url", im.url, "error", err)
		return 0
	}

	imported := 0
	for _, item := range feed.Items {
		if ctx.Err() != nil {
			break
		}
		guid := fetcher.ItemGUID(item)
		seen, err := im.ledger.IsSeen(ctx, im.url, guid)
		if err != nil {
			im.log.Error("check seen", "url", im.url, "guid", guid, "error", err)
			continue
		}
		if seen {
			continue
		}

		l, ok := fetcher.ToListing(item, im.now())
		if ok {
			if err := im.store.Set(ctx, activity.ListingPath(l.ID), activity.ListingFields(l), false); err != nil {
				im.log.Error("write listing", "listing_id", l.ID, "error", err)
				continue
			}
			imported++
		} else {
			im.log.Debug("feed item without price skipped", "guid", guid)
		}

		if err := im.ledger.MarkSeen(ctx, im.url, guid); err != nil {
			im.log.Error("mark seen", "url", im.url, "guid", guid, "error", err)
		}
	}

	if imported > 0 {
		im.log.Info("imported listings", "url", im.url, "count", imported)
	}
	return imported
}
