package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const sendTimeout = 10 * time.Second

// Transport sends the engine's replies through a Telegram bot. Chat ids are
// decimal strings; support ids may also be @channel usernames.
type Transport struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewTransport wraps b.
func NewTransport(b *bot.Bot, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{bot: b, logger: logger.With("component", "telegram_transport")}
}

// SendReply sends text to chatID.
func (t *Transport) SendReply(ctx context.Context, chatID, text string) error {
	return t.send(ctx, chatID, text)
}

// SendTo sends text to an arbitrary id, such as the support chat.
func (t *Transport) SendTo(ctx context.Context, id, text string) error {
	return t.send(ctx, id, text)
}

// SetTyping shows the typing indicator in chatID.
func (t *Transport) SetTyping(ctx context.Context, chatID string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := t.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: ChatID(chatID),
		Action: models.ChatActionTyping,
	})
	if err != nil {
		return fmt.Errorf("failed to send typing action to %s: %w", chatID, err)
	}
	return nil
}

func (t *Transport) send(ctx context.Context, chatID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: ChatID(chatID), Text: text})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", chatID, err)
	}
	t.logger.DebugContext(ctx, "Message sent", "chat_id", chatID)
	return nil
}

// ChatID converts a string id for the Bot API: numeric ids become int64,
// anything else (an @username) is passed through.
func ChatID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
