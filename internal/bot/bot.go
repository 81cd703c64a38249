// Package bot runs the reply bot: the Telegram listener, the scheduler and
// the dashboard server, bound to one lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Activator is told when the transport comes up and goes down.
type Activator interface {
	SetActive(active bool)
}

// Server is a long-running component stopped by cancelling ctx.
type Server interface {
	Run(ctx context.Context) error
}

// Bot manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	engine    Activator
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	dashboard Server
}

// NewBot creates a Bot. dashboard may be nil.
func NewBot(
	logger *slog.Logger,
	engine Activator,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
	dashboard Server,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		engine:    engine,
		tgBot:     tgBot,
		scheduler: scheduler,
		dashboard: dashboard,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener")
		b.engine.SetActive(true)

		b.tgBot.Start(gCtx)

		b.engine.SetActive(false)
		b.logger.Info("Telegram bot listener stopped")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.dashboard != nil {
		g.Go(func() error {
			if err := b.dashboard.Run(gCtx); err != nil {
				return fmt.Errorf("dashboard stopped: %w", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
