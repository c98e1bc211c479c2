package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"campus_notify/internal/model"
)

const (
	cmdSettings = "settings"
	cmdToggle   = "toggle"
	cmdDismiss  = "dismiss"
	cmdResume   = "resume"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Request(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	if !b.cfg.IsUserAllowed(cb.From.ID) {
		return
	}

	action, arg, _ := strings.Cut(data, ":")

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdDismiss:
		b.handleDismiss(ctx, chatID)
	case cmdResume:
		b.handleResume(chatID)
	case cmdSettings:
		b.handleSettings(ctx, chatID)
	case cmdToggle:
		b.handleToggle(ctx, chatID, arg)
	}
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(model.AllCategories))
	for _, c := range model.AllCategories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Toggle %s", c), cmdToggle+":"+string(c)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
