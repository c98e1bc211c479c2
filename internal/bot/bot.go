// Package bot is the Telegram front end: it renders delivery-channel messages into a
// chat and maps chat commands onto the notification engine.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"campus_notify/internal/config"
	"campus_notify/internal/docstore"
	"campus_notify/internal/draft"
	"campus_notify/internal/engine"
	"campus_notify/internal/identity"
	"campus_notify/internal/model"
	"campus_notify/internal/storage"
)

// KV keys owned by the bot.
const (
	chatKey    = "telegram:chat"
	SessionKey = "session:user"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Engine is the part of the notification engine driven by chat commands.
type Engine interface {
	SetScreen(s model.Screen)
	Foreground()
	Dismiss(ctx context.Context)
	ResumeDraft()
	CheckDraft(ctx context.Context)
	Status(ctx context.Context) (engine.Status, bool)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Config   *config.Config
	Store    docstore.Store
	KV       storage.KV
	Drafts   *draft.Repo
	Identity *identity.Holder
	Log      *slog.Logger
}

// Bot is the Telegram bot that handles user commands and renders notifications.
type Bot struct {
	api      telegramAPI
	cfg      *config.Config
	store    docstore.Store
	kv       storage.KV
	drafts   *draft.Repo
	identity *identity.Holder
	engine   Engine
	log      *slog.Logger
	now      func() time.Time

	chatID  atomic.Int64
	limiter *rate.Limiter
	ops     chan renderOp
	sent    map[string]int
}

// New creates a Bot with the given Telegram token. The engine is attached later with
// SetEngine because the engine's delivery channel renders through the bot.
func New(ctx context.Context, token string, d Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, d)
	if err := b.restoreChat(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newBot(api telegramAPI, d Deps) *Bot {
	return &Bot{
		api:      api,
		cfg:      d.Config,
		store:    d.Store,
		kv:       d.KV,
		drafts:   d.Drafts,
		identity: d.Identity,
		log:      d.Log,
		now:      time.Now,
		limiter:  rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
		ops:      make(chan renderOp, 64),
		sent:     make(map[string]int),
	}
}

// SetEngine attaches the engine. It must be called before Run.
func (b *Bot) SetEngine(e Engine) {
	b.engine = e
}

// Run starts the renderer and the long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	go b.runRenderer(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "signin":
		b.handleSignIn(ctx, chatID, args)
	case "signout":
		b.handleSignOut(ctx, chatID)
	case cmdSettings:
		b.handleSettings(ctx, chatID)
	case cmdToggle:
		b.handleToggle(ctx, chatID, args)
	case "filter":
		b.handleFilter(ctx, chatID, args)
	case "fav":
		b.handleFav(ctx, chatID, args)
	case "unfav":
		b.handleUnfav(ctx, chatID, args)
	case "draft":
		b.handleDraft(ctx, chatID, args)
	case "discard":
		b.handleDiscard(ctx, chatID)
	case "publish":
		b.handlePublish(ctx, chatID)
	case "open":
		b.handleOpen(chatID, args)
	case "foreground":
		b.handleForeground(chatID)
	case cmdDismiss:
		b.handleDismiss(ctx, chatID)
	case cmdResume:
		b.handleResume(chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// bindChat makes chatID the target of rendered notifications.
func (b *Bot) bindChat(ctx context.Context, chatID int64) {
	if b.chatID.Swap(chatID) == chatID {
		return
	}
	if err := b.kv.Set(ctx, chatKey, strconv.FormatInt(chatID, 10)); err != nil {
		b.log.Error("save chat binding", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) restoreChat(ctx context.Context) error {
	raw, ok, err := b.kv.Get(ctx, chatKey)
	if err != nil {
		return fmt.Errorf("load chat binding: %w", err)
	}
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		b.log.Warn("ignoring invalid chat binding", "value", raw)
		return nil
	}
	b.chatID.Store(id)
	return nil
}

// user returns the signed-in user, replying with a hint when there is none.
func (b *Bot) user(chatID int64) (identity.User, bool) {
	u := b.identity.Current()
	if !u.SignedIn() {
		b.reply(chatID, "You are signed out. Use /signin <user_id> first.")
		return identity.User{}, false
	}
	return u, true
}

// LoadSession returns the user saved by the last /signin, if any.
func LoadSession(ctx context.Context, kv storage.KV) (identity.User, error) {
	raw, ok, err := kv.Get(ctx, SessionKey)
	if err != nil {
		return identity.User{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return identity.User{}, nil
	}
	var u identity.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return identity.User{}, fmt.Errorf("decode session: %w", err)
	}
	return u, nil
}
