package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewResetStatsHandler returns a handler for the /resetstats command.
func NewResetStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetStatsHandler{deps}.Handle
}

type resetStatsHandler struct {
	deps HandlerDeps
}

func (h resetStatsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "resetstats")
	chatID := update.Message.Chat.ID

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.deps.Engine.ResetStats(timeoutCtx); err != nil {
		// the in-memory counters are cleared even if persisting failed
		log.WarnContext(ctx, "Stats reset not persisted", "error", err, "chat_id", chatID)
	}

	log.InfoContext(ctx, "Admin reset message statistics", "chat_id", chatID)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.StatsResetMsg)
}
