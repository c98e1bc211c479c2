// Package fetcher downloads campus classifieds feeds and turns their items into listings.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"campus_notify/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS and Atom feeds.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses a feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "CampusNotify/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// listingNamespace scopes the name-based UUIDs of imported listings.
var listingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("campus-notify/listings"))

// ListingID derives a stable listing id from a feed GUID.
func ListingID(guid string) string {
	return uuid.NewSHA1(listingNamespace, []byte(guid)).String()
}

var priceRe = regexp.MustCompile(`\$\s?(\d{1,6}(?:[.,]\d{1,2})?)`)

// ParsePrice extracts the first dollar amount in s.
func ParsePrice(s string) (float64, bool) {
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ToListing converts a feed item into an available listing. Items without a
// recognisable price are skipped. A category of the form "condition:<value>"
// sets the listing condition instead of a category.
func ToListing(item *gofeed.Item, now time.Time) (model.Listing, bool) {
	price, ok := ParsePrice(item.Title)
	if !ok {
		price, ok = ParsePrice(item.Description)
	}
	if !ok {
		return model.Listing{}, false
	}

	l := model.Listing{
		ID:          ListingID(ItemGUID(item)),
		Title:       strings.TrimSpace(priceRe.ReplaceAllString(item.Title, "")),
		Description: item.Description,
		Price:       price,
		Status:      model.StatusAvailable,
		PostedAt:    now,
		UpdatedAt:   now,
	}
	if l.Title == "" {
		l.Title = strings.TrimSpace(item.Title)
	}
	if len(l.Description) > 300 {
		l.Description = l.Description[:300] + "..."
	}
	if item.Author != nil {
		l.SellerName = item.Author.Name
	}
	if item.PublishedParsed != nil {
		l.PostedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		l.PostedAt = *item.UpdatedParsed
	}
	if item.UpdatedParsed != nil {
		l.UpdatedAt = *item.UpdatedParsed
	}

	for _, c := range item.Categories {
		c = strings.TrimSpace(c)
		if cond, ok := strings.CutPrefix(strings.ToLower(c), "condition:"); ok {
			l.Condition = strings.TrimSpace(cond)
			continue
		}
		if c != "" {
			l.Categories = append(l.Categories, c)
		}
	}
	return l, true
}
