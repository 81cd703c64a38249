// Package handlers contains the Telegram command handlers, the handler that
// feeds chat messages to the reply engine, and their registration.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly lets a command through only when it was sent by
// telegram.admin_user_id. Anyone else gets the unauthorized reply and the
// command is dropped, as are updates without a message or sender.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	log := deps.Logger.With("middleware", "admin_only")
	adminID := deps.Config.Telegram.AdminUserID

	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			senderID, chatID, ok := commandOrigin(update)
			switch {
			case !ok:
				return
			case senderID == adminID:
				next(ctx, b, update)
			default:
				log.WarnContext(ctx, "Rejected admin command", "user_id", senderID, "chat_id", chatID)
				sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorUnauthorizedMsg)
			}
		}
	}
}

// commandOrigin returns who sent a command update and where.
func commandOrigin(update *models.Update) (senderID, chatID int64, ok bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return 0, 0, false
	}
	return msg.From.ID, msg.Chat.ID, true
}
