// Package tasks implements the bot's scheduled tasks and their registry.
package tasks

import (
	"context"
	"log/slog"

	"github.com/mrdev/replybot/internal/config"
)

// SessionFlusher clears all per-chat session state.
type SessionFlusher interface {
	FlushSessions(ctx context.Context) (int, error)
}

// Maintainer runs database maintenance.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Sessions SessionFlusher
	Store    Maintainer
	Config   *config.Config
}
