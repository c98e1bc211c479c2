package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"campus_notify/internal/activity"
	"campus_notify/internal/docstore"
	"campus_notify/internal/draft"
	"campus_notify/internal/identity"
	"campus_notify/internal/model"
	"campus_notify/internal/prefs"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.bindChat(ctx, chatID)
	b.reply(chatID, `Welcome to Campus Notify!

Notifications about your favorites, chats, drafts and recommended listings will show up in this chat.

Quick start:
1. /signin <user_id> to connect your marketplace account
2. /settings to see what is switched on
3. /toggle <category> to switch a category on or off

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Account:
/signin <user_id> [name] - sign in
/signout - sign out and stop all notifications

Preferences:
/settings - show notification settings
/toggle <category> - messages, marketplaceActivity, reminders, recommendations
/filter <min|-> <max|-> [cats] [condition] - recommendation filter

Marketplace:
/fav <listing_id> - watch a listing
/unfav <listing_id> - stop watching a listing
/draft <title> | <price> [| description] - save a draft listing
/discard - delete the draft
/publish - post the draft as a listing

App:
/open <home|compose|chat> [thread_id] - switch screen
/foreground - bring the app to the foreground
/dismiss - hide the current notification
/resume - continue editing the draft`)
}

func (b *Bot) handleSignIn(ctx context.Context, chatID int64, args string) {
	id, name, err := ParseSignInArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /signin <user_id> [display name]")
		return
	}
	b.bindChat(ctx, chatID)

	u := identity.User{ID: id, DisplayName: name}
	if data, err := json.Marshal(u); err == nil {
		if err := b.kv.Set(ctx, SessionKey, string(data)); err != nil {
			b.log.Error("save session", "user_id", id, "error", err)
		}
	}
	b.identity.Set(u)
	b.log.Info("signed in", "user_id", id, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Signed in as %s.", id))
}

func (b *Bot) handleSignOut(ctx context.Context, chatID int64) {
	if !b.identity.Current().SignedIn() {
		b.reply(chatID, "You are not signed in.")
		return
	}
	if err := b.kv.Remove(ctx, SessionKey); err != nil {
		b.log.Error("clear session", "error", err)
	}
	b.identity.Set(identity.User{})
	b.reply(chatID, "Signed out. Notifications are off.")
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) {
	if _, ok := b.user(chatID); !ok {
		return
	}
	st, ok := b.engine.Status(ctx)
	if !ok {
		b.reply(chatID, "Engine is busy, try again.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, FormatSettings(st))
	msg.ReplyMarkup = settingsKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send settings", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, args string) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	c, ok := model.ParseCategory(args)
	if !ok {
		b.reply(chatID, "Usage: /toggle <messages|marketplaceActivity|reminders|recommendations>")
		return
	}

	on, err := b.toggle(ctx, u.ID, c)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	status := statusOff
	if on {
		status = statusOn
	}
	b.reply(chatID, fmt.Sprintf("%s notifications are now %s.", c, status))
}

// toggle flips one category in the settings document and returns the new value.
func (b *Bot) toggle(ctx context.Context, uid string, c model.Category) (bool, error) {
	doc, err := b.store.Get(ctx, prefs.SettingsPath(uid))
	if err != nil {
		return false, fmt.Errorf("read settings: %w", err)
	}
	on := !prefs.Parse(doc).Enabled(c)
	if err := b.writeSettings(ctx, uid, docstore.Fields{string(c): on}); err != nil {
		return false, err
	}
	return on, nil
}

func (b *Bot) handleFilter(ctx context.Context, chatID int64, args string) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	f, err := ParseFilterArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.writeSettings(ctx, u.ID, docstore.Fields{"recommendationFilter": prefs.FilterFields(f)}); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Recommendation filter: "+FormatFilter(f))
}

// writeSettings replaces top-level settings fields, creating the document if needed.
func (b *Bot) writeSettings(ctx context.Context, uid string, fields docstore.Fields) error {
	path := prefs.SettingsPath(uid)
	err := b.store.Update(ctx, path, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		err = b.store.Set(ctx, path, fields, true)
	}
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (b *Bot) handleFav(ctx context.Context, chatID int64, args string) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /fav <listing_id>")
		return
	}

	doc, err := b.store.Get(ctx, activity.ListingPath(id))
	if err != nil || !doc.Exists {
		b.reply(chatID, fmt.Sprintf("Listing %s not found.", id))
		return
	}
	path := docstore.Join(activity.FavoritesPath(u.ID), id)
	if err := b.store.Set(ctx, path, docstore.Fields{"listingId": id, "addedAt": b.now()}, false); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	l := activity.ListingFromDoc(doc)
	b.reply(chatID, fmt.Sprintf("Watching %q (%s).", l.Title, activity.FormatPrice(l.Price)))
}

func (b *Bot) handleUnfav(ctx context.Context, chatID int64, args string) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unfav <listing_id>")
		return
	}
	if err := b.store.Delete(ctx, docstore.Join(activity.FavoritesPath(u.ID), id)); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Stopped watching %s.", id))
}

func (b *Bot) handleDraft(ctx context.Context, chatID int64, args string) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	d, err := ParseDraftArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	saved, err := b.drafts.Save(ctx, u.ID, d)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Draft %q saved at %s.", saved.Title, saved.SavedAt.Format("2006-01-02 15:04")))
}

func (b *Bot) handleDiscard(ctx context.Context, chatID int64) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	if err := b.drafts.Clear(ctx, u.ID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Draft discarded.")
}

func (b *Bot) handlePublish(ctx context.Context, chatID int64) {
	u, ok := b.user(chatID)
	if !ok {
		return
	}
	id, err := draft.Publish(ctx, b.drafts, b.store, u)
	if errors.Is(err, docstore.ErrNotFound) {
		b.reply(chatID, "You have no draft. Use /draft to create one.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Listing published: %s", id))
}

func (b *Bot) handleOpen(chatID int64, args string) {
	s, err := ParseScreenArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.engine.SetScreen(s)
	b.reply(chatID, "Screen: "+s.Name)
}

func (b *Bot) handleForeground(chatID int64) {
	b.engine.Foreground()
	b.reply(chatID, "App is in the foreground.")
}

func (b *Bot) handleDismiss(ctx context.Context, chatID int64) {
	b.engine.Dismiss(ctx)
	b.log.Debug("dismiss requested", "chat_id", chatID)
}

func (b *Bot) handleResume(chatID int64) {
	b.engine.ResumeDraft()
	b.reply(chatID, "Back to your draft. Use /draft to update it or /publish to post it.")
}
