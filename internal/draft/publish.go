package draft

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"campus_notify/internal/activity"
	"campus_notify/internal/docstore"
	"campus_notify/internal/identity"
	"campus_notify/internal/model"
)

// Publish writes the user's draft as a new listing and deletes the draft.
// The repo stays locked throughout, so a save made meanwhile is not lost.
func Publish(ctx context.Context, repo *Repo, store docstore.Store, user identity.User) (string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	d, err := repo.load(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", fmt.Errorf("publish draft: %w", docstore.ErrNotFound)
	}
	if strings.TrimSpace(d.Title) == "" {
		return "", fmt.Errorf("publish draft: title is required")
	}

	price, _ := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(d.Price), "$"), 64)
	now := repo.clock.Now()
	l := model.Listing{
		Title:       d.Title,
		Description: d.Description,
		Price:       price,
		Categories:  d.Categories,
		Condition:   d.Condition,
		Status:      model.StatusAvailable,
		SellerID:    user.ID,
		SellerName:  user.DisplayName,
		Location:    d.Location,
		PostedAt:    now,
		UpdatedAt:   now,
	}

	id := uuid.NewString()
	fields := activity.ListingFields(l)
	fields["images"] = append([]string{}, d.Images...)
	if err := store.Set(ctx, activity.ListingPath(id), fields, false); err != nil {
		return "", fmt.Errorf("publish draft: %w", err)
	}
	if err := repo.clear(ctx, user.ID); err != nil {
		return id, err
	}
	return id, nil
}
