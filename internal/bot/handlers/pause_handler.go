package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewPauseHandler returns a handler for the /pause command, which toggles
// the paused flag.
func NewPauseHandler(deps HandlerDeps) bot.HandlerFunc {
	return pauseHandler{deps}.Handle
}

type pauseHandler struct {
	deps HandlerDeps
}

func (h pauseHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "pause")
	chatID := update.Message.Chat.ID

	paused := h.deps.Engine.TogglePause()
	log.InfoContext(ctx, "Admin toggled pause", "chat_id", chatID, "paused", paused)

	text := h.deps.Config.Messages.ResumedMsg
	if paused {
		text = h.deps.Config.Messages.PausedMsg
	}
	sendText(ctx, b, log, chatID, text)
}
