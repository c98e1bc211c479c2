package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"campus_notify/internal/bot"
	"campus_notify/internal/clock"
	"campus_notify/internal/config"
	"campus_notify/internal/delivery"
	"campus_notify/internal/docstore"
	"campus_notify/internal/draft"
	"campus_notify/internal/engine"
	"campus_notify/internal/identity"
	"campus_notify/internal/lifecycle"
	"campus_notify/internal/loop"
	"campus_notify/internal/scheduler"
	"campus_notify/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifier failed", "error", err)
		os.Exit(1)
	}
	log.Info("notifier stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	docs, closeDocs, err := openDocStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDocs()

	sqlite, err := openSQLite(cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer func() { _ = sqlite.Close() }()

	var kv storage.KV = sqlite
	if cfg.KVBackend == config.KVRedis {
		client, err := storage.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		rdb := storage.NewRedis(client, "campus_notify:")
		defer func() { _ = rdb.Close() }()
		kv = rdb
	}

	user := identity.User{ID: cfg.UserID}
	if !user.SignedIn() {
		if user, err = bot.LoadSession(ctx, kv); err != nil {
			log.Warn("ignoring saved session", "error", err)
			user = identity.User{}
		}
	}
	holder := identity.NewHolder(user)
	life := lifecycle.NewSignal(lifecycle.Foreground)

	lp := loop.New()
	clk := clock.Real{}
	drafts := draft.NewRepo(kv, clk)

	var renderer delivery.Renderer = delivery.LogRenderer{Log: log}
	var b *bot.Bot
	if cfg.TelegramBotToken != "" {
		b, err = bot.New(ctx, cfg.TelegramBotToken, bot.Deps{
			Config:   cfg,
			Store:    docs,
			KV:       kv,
			Drafts:   drafts,
			Identity: holder,
			Log:      log,
		})
		if err != nil {
			return err
		}
		renderer = b
	} else {
		log.Info("TELEGRAM_BOT_TOKEN not set, notifications go to the log")
	}

	channel := delivery.New(renderer, clk, lp, cfg.ToastTTL, log)
	eng := engine.New(engine.Deps{
		Store:    docs,
		Dispatch: lp,
		Channel:  channel,
		Drafts:   drafts,
		Clock:    clk,
		Log:      log,
		PageSize: cfg.FeedPageSize,
	})

	jobs, err := scheduler.NewReminderJobs(cfg.ReminderSchedule, eng, log)
	if err != nil {
		return err
	}

	go lp.Run(ctx)
	eng.Start(holder, life)
	defer eng.Stop()

	go jobs.Run(ctx)
	go forwardForeground(ctx, life, log)

	if cfg.ListingFeedURL != "" {
		im := scheduler.NewImporter(docs, sqlite, cfg.ListingFeedURL, log)
		im.SetTickInterval(cfg.ImportInterval)
		go im.Run(ctx)
	}

	log.Info("starting notifier", "user_id", user.ID, "docstore", cfg.DocStore, "kv", cfg.KVBackend)

	if b != nil {
		b.SetEngine(eng)
		b.Run(ctx)
		return nil
	}
	<-ctx.Done()
	return nil
}

func openDocStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (docstore.Store, func(), error) {
	if cfg.DocStore != config.DocStoreMongo {
		return docstore.NewMemory(), func() {}, nil
	}
	client, db, err := docstore.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error("disconnect mongo", "error", err)
		}
	}
	return docstore.NewMongo(db, log), closeFn, nil
}

func openSQLite(path string, log *slog.Logger) (*storage.SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			return nil, err
		}
	}
	return storage.NewSQLite(path)
}

// forwardForeground turns SIGUSR1 into an app-foreground transition.
func forwardForeground(ctx context.Context, sig *lifecycle.Signal, log *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			log.Debug("foreground signal received")
			sig.Emit(lifecycle.Foreground)
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
