package activity

import (
	"fmt"
	"strconv"
	"strings"

	"campus_notify/internal/docstore"
	"campus_notify/internal/model"
)

// ListingFromDoc extracts the listing fields the engine interprets.
func ListingFromDoc(doc docstore.Document) model.Listing {
	f := doc.Fields
	price, _ := f.Float("price")
	cats := f.Strings("categories")
	if len(cats) == 0 {
		cats = f.Strings("category")
	}
	location := f.String("location")
	if location == "" {
		location = f.Map("location").String("name")
	}
	return model.Listing{
		ID:          doc.ID,
		Title:       f.String("title"),
		Description: f.String("description"),
		Price:       price,
		Categories:  cats,
		Condition:   f.String("condition"),
		Status:      f.String("status"),
		SellerID:    f.String("sellerId"),
		SellerName:  f.String("sellerName"),
		Location:    location,
		PostedAt:    f.Time("postedAt"),
		UpdatedAt:   f.Time("updatedAt"),
	}
}

// ThreadFromDoc extracts a chat thread as seen by uid. lastMessage may be a plain
// string or a map with text, senderId and createdAt.
func ThreadFromDoc(doc docstore.Document, uid string) model.Thread {
	f := doc.Fields
	t := model.Thread{
		ID:            doc.ID,
		Title:         f.String("title"),
		SellerName:    f.String("sellerName"),
		LastMessage:   f.String("lastMessage"),
		LastSenderID:  f.String("lastSenderId"),
		LastMessageAt: f.Time("lastMessageAt"),
		Unread:        f.Int("unread." + uid),
	}
	if t.Title == "" {
		t.Title = f.String("listingTitle")
	}
	if m := f.Map("lastMessage"); m != nil {
		t.LastMessage = m.String("text")
		if s := m.String("senderId"); s != "" {
			t.LastSenderID = s
		}
		if ts := m.Time("createdAt"); !ts.IsZero() {
			t.LastMessageAt = ts
		}
	}
	return t
}

// ListingFields renders a listing as a document.
func ListingFields(l model.Listing) docstore.Fields {
	f := docstore.Fields{
		"title":       l.Title,
		"description": l.Description,
		"price":       l.Price,
		"categories":  append([]string{}, l.Categories...),
		"condition":   l.Condition,
		"status":      l.Status,
		"sellerId":    l.SellerID,
		"sellerName":  l.SellerName,
		"location":    l.Location,
	}
	if !l.PostedAt.IsZero() {
		f["postedAt"] = l.PostedAt
	}
	if !l.UpdatedAt.IsZero() {
		f["updatedAt"] = l.UpdatedAt
	}
	return f
}

// FormatPrice renders a price the way listings display it.
func FormatPrice(p float64) string {
	if p == float64(int64(p)) {
		return "$" + strconv.FormatInt(int64(p), 10)
	}
	return fmt.Sprintf("$%.2f", p)
}

func describeChange(l model.Listing, changed []string) string {
	parts := make([]string, 0, len(changed))
	for _, c := range changed {
		switch c {
		case "price":
			parts = append(parts, "price is now "+FormatPrice(l.Price))
		case "status":
			parts = append(parts, "status is now "+l.Status)
		case "sellerName":
			parts = append(parts, "seller updated")
		default:
			parts = append(parts, c+" updated")
		}
	}
	title := l.Title
	if title == "" {
		title = "A favorited listing"
	}
	return title + ": " + strings.Join(parts, ", ")
}
