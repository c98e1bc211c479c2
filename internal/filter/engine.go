// Package filter implements the listing recommendation matching engine.
package filter

import (
	"strings"

	"campus_notify/internal/model"
)

// Reason explains why a listing was rejected. The empty Reason means accepted.
type Reason string

// Rejection reasons.
const (
	Accepted        Reason = ""
	RejectOwn       Reason = "own listing"
	RejectSold      Reason = "sold"
	RejectStale     Reason = "posted before enablement"
	RejectPrice     Reason = "price out of range"
	RejectCategory  Reason = "category mismatch"
	RejectCondition Reason = "condition mismatch"
	RejectShown     Reason = "already shown"
)

// Match checks a listing against the user's filter.
// Price bounds are inclusive and a nil bound is unbounded.
// Empty categories and an empty condition match every listing.
func Match(l model.Listing, f model.RecommendationFilter) Reason {
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return RejectPrice
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return RejectPrice
	}
	if len(f.Categories) > 0 && !anyCategory(l.Categories, f.Categories) {
		return RejectCategory
	}
	if f.Condition != "" && !strings.EqualFold(strings.TrimSpace(l.Condition), strings.TrimSpace(f.Condition)) {
		return RejectCondition
	}
	return Accepted
}

func anyCategory(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}
