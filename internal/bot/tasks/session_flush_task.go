package tasks

import (
	"context"
	"fmt"

	"github.com/mrdev/replybot/internal/config"
)

// newSessionFlushTask wipes every chat's session memory. It runs next to
// message handling; an increment racing the flush may be lost.
func newSessionFlushTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.SessionFlushTask)

	return func(ctx context.Context) error {
		n, err := deps.Sessions.FlushSessions(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Session flush failed", "error", err)
			return fmt.Errorf("session flush failed: %w", err)
		}

		log.InfoContext(ctx, "Session memory flushed", "sessions", n)
		return nil
	}
}
