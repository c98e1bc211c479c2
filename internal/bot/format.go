package bot

import (
	"fmt"
	"strings"

	"campus_notify/internal/activity"
	"campus_notify/internal/engine"
	"campus_notify/internal/model"
)

const (
	statusOn  = "on"
	statusOff = "off"
)

// FormatNotification formats a delivery-channel message as a Telegram message.
func FormatNotification(msg model.Message) string {
	if msg.Body == "" {
		return msg.Title
	}
	return msg.Title + "\n\n" + msg.Body
}

// FormatSettings formats the engine status for /settings.
func FormatSettings(st engine.Status) string {
	var b strings.Builder
	name := st.User.DisplayName
	if name == "" {
		name = st.User.ID
	}
	fmt.Fprintf(&b, "Signed in as %s\n\nNotifications:\n", name)
	for _, c := range model.AllCategories {
		status := statusOff
		if st.Prefs.Enabled(c) {
			status = statusOn
		}
		fmt.Fprintf(&b, "  %s: %s\n", c, status)
	}

	b.WriteString("\nRecommendation filter: ")
	b.WriteString(FormatFilter(st.Prefs.Filter))
	b.WriteString("\n")

	if len(st.Favorites) > 0 {
		fmt.Fprintf(&b, "Watching %d favorites\n", len(st.Favorites))
	}
	if st.Shown > 0 {
		fmt.Fprintf(&b, "Recommended so far: %d\n", st.Shown)
	}
	screen := st.Screen.Name
	if st.Screen.Param != "" {
		screen += " " + st.Screen.Param
	}
	fmt.Fprintf(&b, "Screen: %s", screen)
	return b.String()
}

// FormatFilter renders a recommendation filter on one line.
func FormatFilter(f model.RecommendationFilter) string {
	var parts []string
	switch {
	case f.MinPrice != nil && f.MaxPrice != nil:
		parts = append(parts, activity.FormatPrice(*f.MinPrice)+"-"+activity.FormatPrice(*f.MaxPrice))
	case f.MinPrice != nil:
		parts = append(parts, "from "+activity.FormatPrice(*f.MinPrice))
	case f.MaxPrice != nil:
		parts = append(parts, "up to "+activity.FormatPrice(*f.MaxPrice))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, strings.Join(f.Categories, ", "))
	}
	if f.Condition != "" {
		parts = append(parts, f.Condition)
	}
	if len(parts) == 0 {
		return "anything"
	}
	return strings.Join(parts, "; ")
}
