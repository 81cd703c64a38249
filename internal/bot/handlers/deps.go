package handlers

import (
	"context"
	"log/slog"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/engine"
)

// Engine is the part of the reply engine the Telegram handlers drive.
type Engine interface {
	HandleMessage(ctx context.Context, msg engine.InboundMessage) engine.Outcome
	TogglePause() bool
	ResetStats(ctx context.Context) error
	ReloadCatalog() (catalog.Snapshot, error)
	Stats() engine.MessageStats
}

// HandlerDeps provides dependencies for Telegram command and message handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Engine Engine
}
