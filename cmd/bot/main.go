package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"forum_search/internal/bot"
	"forum_search/internal/config"
	"forum_search/internal/forum"
	"forum_search/internal/identity"
	"forum_search/internal/scheduler"
	"forum_search/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Sessions idle past the timeout while the bot was down are gone.
	cutoff := time.Now().Add(-cfg.SessionIdleTimeout)
	if n, err := store.DeleteSnapshotsBefore(ctx, cutoff); err != nil {
		log.Error("prune snapshots", "error", err)
	} else if n > 0 {
		log.Info("pruned stale snapshots", "count", n)
	}

	client, err := forum.New(&http.Client{Timeout: cfg.RequestTimeout}, forum.Config{
		BaseURL:           cfg.ForumBaseURL,
		Cookie:            cfg.ForumCookie,
		RequestsPerSecond: cfg.ForumRateLimit,
	})
	if err != nil {
		log.Error("create forum client", "error", err)
		os.Exit(1)
	}
	if cfg.ForumCookie == "" {
		log.Warn("FORUM_COOKIE is empty, searches will fail until the client is logged in")
	}

	sched := scheduler.New(client, log, cfg.SearchWorkers, cfg.RequestTimeout)

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, identity.New(cfg.ForumUsername), sched, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	log.Info("starting bot", "forum", cfg.ForumBaseURL, "workers", cfg.SearchWorkers)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
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
