// Package main contains the entrypoint for the reply bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/mrdev/replybot/internal/bot"
	"github.com/mrdev/replybot/internal/bot/handlers"
	"github.com/mrdev/replybot/internal/bot/tasks"
	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/dashboard"
	"github.com/mrdev/replybot/internal/database"
	"github.com/mrdev/replybot/internal/engine"
	"github.com/mrdev/replybot/internal/logger"
	"github.com/mrdev/replybot/internal/session"
	"github.com/mrdev/replybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, runs until ctx is cancelled, and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load env file", "path", *envPath, "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	cat := catalog.NewStore(cfg.Catalog, log)
	if _, err := cat.Reload(); err != nil {
		// Not fatal: the engine retries on the first message that finds the catalog empty.
		log.Error("Failed to load catalog", "error", err)
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		log.Error("Failed to initialize session store", "backend", cfg.Session.Backend, "error", err)
		return 1
	}
	defer closeSessions()

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	eng, err := engine.New(engine.Deps{
		Logger:    log,
		Config:    cfg,
		Catalog:   cat,
		Sessions:  sessions,
		Store:     store,
		Transport: telegram.NewTransport(tg, log),
	})
	if err != nil {
		log.Error("Failed to create reply engine", "error", err)
		return 1
	}
	if err := eng.Restore(ctx); err != nil {
		log.Error("Failed to restore persisted state", "error", err)
	}

	hDeps := handlers.HandlerDeps{Logger: log, Config: cfg, Engine: eng}
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{Logger: log, Sessions: eng, Store: store, Config: cfg}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var dash bot.Server
	if cfg.Dashboard.Enabled {
		dash = dashboard.NewServer(cfg.Dashboard, eng, log)
	}

	app := bot.NewBot(log, eng, tg, sched, dash)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	if cfg.Backend != config.SessionBackendRedis {
		return session.NewMemoryStore(), func() {}, nil
	}

	rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.KeyPrefix)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() {
		if err := rs.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}, nil
}
