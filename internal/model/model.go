// Package model defines the domain types used across the application.
package model

import "time"

// Category is a user-toggleable notification category.
type Category string

// Supported notification categories.
const (
	CategoryMessages            Category = "messages"
	CategoryMarketplaceActivity Category = "marketplaceActivity"
	CategoryReminders           Category = "reminders"
	CategoryRecommendations     Category = "recommendations"
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{
	CategoryMessages,
	CategoryMarketplaceActivity,
	CategoryReminders,
	CategoryRecommendations,
}

// ParseCategory maps a user-supplied name onto a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	switch s {
	case "activity", "marketplace":
		return CategoryMarketplaceActivity, true
	case "chat":
		return CategoryMessages, true
	case "recs":
		return CategoryRecommendations, true
	}
	return "", false
}

// RecommendationFilter is the user's stated listing preferences.
// Nil bounds are unbounded; empty Categories and Condition match everything.
type RecommendationFilter struct {
	MinPrice   *float64
	MaxPrice   *float64
	Categories []string
	Condition  string
}

// PreferenceState is the derived per-category enablement of one user.
type PreferenceState struct {
	Messages            bool
	MarketplaceActivity bool
	Reminders           bool
	Recommendations     bool

	// EnabledSince holds the moment each category last flipped from off to on.
	EnabledSince map[Category]time.Time
	Filter       RecommendationFilter
}

// DisabledState is emitted when no user is signed in.
func DisabledState() PreferenceState {
	return PreferenceState{EnabledSince: map[Category]time.Time{}}
}

// DefaultState is used when the settings document is missing or unreadable.
func DefaultState() PreferenceState {
	return PreferenceState{
		Messages:            true,
		MarketplaceActivity: true,
		Reminders:           true,
		Recommendations:     false,
		EnabledSince:        map[Category]time.Time{},
	}
}

// Enabled reports whether the category is switched on.
func (p PreferenceState) Enabled(c Category) bool {
	switch c {
	case CategoryMessages:
		return p.Messages
	case CategoryMarketplaceActivity:
		return p.MarketplaceActivity
	case CategoryReminders:
		return p.Reminders
	case CategoryRecommendations:
		return p.Recommendations
	}
	return false
}

// SetEnabled switches a category on or off.
func (p *PreferenceState) SetEnabled(c Category, on bool) {
	switch c {
	case CategoryMessages:
		p.Messages = on
	case CategoryMarketplaceActivity:
		p.MarketplaceActivity = on
	case CategoryReminders:
		p.Reminders = on
	case CategoryRecommendations:
		p.Recommendations = on
	}
}

// Since returns the enablement timestamp of a category (zero if never stamped).
func (p PreferenceState) Since(c Category) time.Time {
	return p.EnabledSince[c]
}

// Listing statuses.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
)

// Listing is a marketplace listing as seen by the notification engine.
type Listing struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Categories  []string
	Condition   string
	Status      string
	SellerID    string
	SellerName  string
	Location    string
	PostedAt    time.Time
	UpdatedAt   time.Time
}

// Thread is a chat thread between a buyer and a seller.
type Thread struct {
	ID            string
	Title         string
	SellerName    string
	LastMessage   string
	LastSenderID  string
	LastMessageAt time.Time
	Unread        int
}

// DraftRecord is a locally persisted, unpublished listing.
type DraftRecord struct {
	Title          string
	Categories     []string
	Condition      string
	Price          string
	Description    string
	Images         []string
	Location       string
	SavedAt        time.Time
	LastReminderAt *time.Time
}

// Message is a transient user-facing notification.
type Message struct {
	// Key identifies the producer instance that raised the message.
	Key   string
	Title string
	Body  string
	TTL   time.Duration
}

// Screen names used for focus-based suppression.
const (
	ScreenHome    = "home"
	ScreenCompose = "compose"
	ScreenChat    = "chat"
)

// Screen is the screen the user currently looks at.
type Screen struct {
	Name  string
	Param string
}

// EntityKind is the kind of a watched remote document.
type EntityKind string

// Watched entity kinds.
const (
	KindListing EntityKind = "listing"
	KindThread  EntityKind = "thread"
	KindDraft   EntityKind = "draft"
)
