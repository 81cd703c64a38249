package handlers

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mrdev/replybot/internal/engine"
)

// IsInboundMessage matches every message update except the registered
// commands. Unknown commands are passed on as ordinary text.
func IsInboundMessage(update *models.Update) bool {
	return update.Message != nil && !isRegisteredCommand(update.Message.Text)
}

// isRegisteredCommand reports whether the first word of text is one of
// commandNames with its leading slash.
func isRegisteredCommand(text string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, ok := strings.CutPrefix(first, "/")
	return ok && slices.Contains(commandNames, name)
}

// ToInboundMessage converts a Telegram message for the engine. Messages
// without text are passed as KindOther so the engine drops them.
func ToInboundMessage(msg *models.Message, botID int64) engine.InboundMessage {
	in := engine.InboundMessage{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: msg.ID,
		Body:      msg.Text,
		Timestamp: int64(msg.Date),
		Kind:      engine.KindChat,
		FromMe:    msg.From != nil && botID != 0 && msg.From.ID == botID,
	}
	if strings.TrimSpace(msg.Text) == "" {
		in.Kind = engine.KindOther
	}
	return in
}

// NewMessageHandler returns the handler that feeds chat messages to the engine.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	if update.Message == nil {
		return
	}

	var botID int64
	if info := h.deps.Config.Telegram.BotInfo; info != nil {
		botID = info.ID
	}

	in := ToInboundMessage(update.Message, botID)
	outcome := h.deps.Engine.HandleMessage(ctx, in)
	log.DebugContext(ctx, "Message handled", "chat_id", in.ChatID, "message_id", in.MessageID, "outcome", outcome)
}
