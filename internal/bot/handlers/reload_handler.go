package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewReloadHandler returns a handler for the /reload command, which rereads
// the catalog and bad-word files.
func NewReloadHandler(deps HandlerDeps) bot.HandlerFunc {
	return reloadHandler{deps}.Handle
}

type reloadHandler struct {
	deps HandlerDeps
}

func (h reloadHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reload")
	chatID := update.Message.Chat.ID

	snap, err := h.deps.Engine.ReloadCatalog()
	if err != nil {
		log.WarnContext(ctx, "Catalog reloaded with errors", "error", err, "chat_id", chatID)
	}

	sendText(ctx, b, log, chatID, fmt.Sprintf(h.deps.Config.Messages.CatalogReloadedMsg, len(snap.Entries), len(snap.BadWords)))
}
