// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Document store backends.
const (
	DocStoreMemory = "memory"
	DocStoreMongo  = "mongo"
)

// Local key-value backends.
const (
	KVSQLite = "sqlite"
	KVRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	LogLevel     string
	UserID       string
	AllowedUsers []int64

	DocStore string
	MongoURI string
	MongoDB  string

	KVBackend     string
	DatabasePath  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TelegramBotToken string

	ToastTTL         time.Duration
	FeedPageSize     int
	ReminderSchedule string

	ListingFeedURL string
	ImportInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:         getenv("LOG_LEVEL", "info"),
		UserID:           strings.TrimSpace(os.Getenv("USER_ID")),
		DocStore:         getenv("DOCSTORE", DocStoreMemory),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getenv("MONGO_DB", "campus"),
		KVBackend:        getenv("KV_BACKEND", KVSQLite),
		DatabasePath:     getenv("DATABASE_PATH", "./data/notifier.db"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		ReminderSchedule: getenv("REMINDER_SCHEDULE", "@every 30m"),
		ListingFeedURL:   os.Getenv("LISTING_FEED_URL"),
	}

	var err error
	if cfg.AllowedUsers, err = parseUsers(os.Getenv("ALLOWED_USERS")); err != nil {
		return nil, err
	}

	switch cfg.DocStore {
	case DocStoreMemory:
	case DocStoreMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required when DOCSTORE=mongo")
		}
	default:
		return nil, fmt.Errorf("invalid DOCSTORE %q: want %s or %s", cfg.DocStore, DocStoreMemory, DocStoreMongo)
	}

	switch cfg.KVBackend {
	case KVSQLite:
	case KVRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when KV_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("invalid KV_BACKEND %q: want %s or %s", cfg.KVBackend, KVSQLite, KVRedis)
	}

	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if cfg.RedisDB, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", raw, err)
		}
	}

	if cfg.ToastTTL, err = parseDuration("TOAST_TTL", 3500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ImportInterval, err = parseDuration("IMPORT_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.FeedPageSize = 20
	if raw := os.Getenv("FEED_PAGE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid FEED_PAGE_SIZE %q: must be a positive integer", raw)
		}
		cfg.FeedPageSize = n
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseUsers(raw string) ([]int64, error) {
	var users []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
