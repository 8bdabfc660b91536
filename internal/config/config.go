// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	ForumBaseURL       string
	ForumUsername      string
	ForumCookie        string
	ForumRateLimit     float64
	RequestTimeout     time.Duration
	SessionIdleTimeout time.Duration
	SearchWorkers      int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	rateLimit := 1.0
	if raw := os.Getenv("FORUM_RATE_LIMIT"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid FORUM_RATE_LIMIT %q: must be a non-negative number", raw)
		}
		rateLimit = v
	}

	requestTimeout, err := durationEnv("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := durationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	workers := 2
	if raw := os.Getenv("SEARCH_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 32 {
			return nil, fmt.Errorf("invalid SEARCH_WORKERS %q: must be between 1 and 32", raw)
		}
		workers = n
	}

	return &Config{
		TelegramBotToken:   token,
		DatabasePath:       envOrDefault("DATABASE_PATH", "./data/search.db"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		AllowedUsers:       allowedUsers,
		ForumBaseURL:       envOrDefault("FORUM_BASE_URL", "https://forums.somethingawful.com"),
		ForumUsername:      os.Getenv("FORUM_USERNAME"),
		ForumCookie:        os.Getenv("FORUM_COOKIE"),
		ForumRateLimit:     rateLimit,
		RequestTimeout:     requestTimeout,
		SessionIdleTimeout: idleTimeout,
		SearchWorkers:      workers,
	}, nil
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

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, raw)
	}
	return d, nil
}
