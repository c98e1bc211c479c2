package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"campus_notify/internal/model"
)

type renderOp struct {
	show bool
	msg  model.Message
}

// Show implements delivery.Renderer. Rendering happens on the renderer goroutine so
// the dispatcher never waits on Telegram.
func (b *Bot) Show(msg model.Message) {
	b.enqueue(renderOp{show: true, msg: msg})
}

// Hide implements delivery.Renderer by deleting the chat message that showed msg.
func (b *Bot) Hide(msg model.Message) {
	b.enqueue(renderOp{msg: msg})
}

func (b *Bot) enqueue(op renderOp) {
	select {
	case b.ops <- op:
	default:
		b.log.Warn("render queue full, dropping", "key", op.msg.Key, "show", op.show)
	}
}

func (b *Bot) runRenderer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-b.ops:
			if err := b.limiter.Wait(ctx); err != nil {
				return
			}
			b.render(op)
		}
	}
}

func (b *Bot) render(op renderOp) {
	chatID := b.chatID.Load()
	if chatID == 0 {
		b.log.Debug("no chat bound, notification not rendered", "key", op.msg.Key)
		return
	}

	if op.show {
		m := tgbotapi.NewMessage(chatID, FormatNotification(op.msg))
		if strings.HasPrefix(op.msg.Key, "draft:") {
			m.ReplyMarkup = reminderKeyboard()
		}
		sent, err := b.api.Send(m)
		if err != nil {
			b.log.Error("send notification", "chat_id", chatID, "key", op.msg.Key, "error", err)
			return
		}
		b.sent[op.msg.Key] = sent.MessageID
		return
	}

	id, ok := b.sent[op.msg.Key]
	if !ok {
		return
	}
	delete(b.sent, op.msg.Key)
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, id)); err != nil {
		b.log.Error("delete notification", "chat_id", chatID, "message_id", id, "error", err)
	}
}

func reminderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Resume", cmdResume),
			tgbotapi.NewInlineKeyboardButtonData("Dismiss", cmdDismiss),
		),
	)
}
