package engine

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrdev/replybot/internal/database"
)

const persistTimeout = 5 * time.Second

// recordConversation prepends a record for one answered turn, trims the log,
// persists it and notifies observers. Persistence errors are logged only.
func (e *Engine) recordConversation(ctx context.Context, chatID, incoming, reply string) database.ConversationRecord {
	rec := database.ConversationRecord{
		ID:              newConversationID(),
		PhoneNumber:     phoneNumber(chatID),
		IncomingMessage: incoming,
		BotReply:        reply,
		Timestamp:       e.now().UTC(),
	}

	limit := e.cfg.ConversationLimit
	e.mu.Lock()
	e.conversations = slices.Insert(e.conversations, 0, rec)
	if len(e.conversations) > limit {
		e.conversations = slices.Delete(e.conversations, limit, len(e.conversations))
	}
	e.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.store.SaveConversation(saveCtx, rec, limit); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist conversation", "conversation_id", rec.ID, "error", err)
	}

	e.events.publish(Event{Type: EventConversationUpdate, Conversation: &rec})
	return rec
}

// recordDailyCount bumps today's bucket, evicting the oldest inserted
// buckets once the limit is exceeded.
func (e *Engine) recordDailyCount(ctx context.Context) {
	today := e.now().UTC().Format(time.DateOnly)

	e.mu.Lock()
	if i := slices.IndexFunc(e.daily, func(d database.DailyCount) bool { return d.Date == today }); i >= 0 {
		e.daily[i].Count++
	} else {
		e.daily = append(e.daily, database.DailyCount{Date: today, Count: 1})
	}
	if over := len(e.daily) - e.cfg.DailyBucketLimit; over > 0 {
		e.daily = slices.Delete(e.daily, 0, over)
	}
	counts := slices.Clone(e.daily)
	stats := statsFor(counts, today)
	e.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.store.ReplaceDailyCounts(saveCtx, counts); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist daily counts", "date", today, "error", err)
	}

	e.events.publish(Event{Type: EventMessageStats, Stats: &stats})
}

// appendAudit writes one audit entry, logging failures.
func (e *Engine) appendAudit(ctx context.Context, kind database.AuditKind, chatID, body string) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	entry := database.AuditEntry{Kind: kind, ChatID: chatID, Body: body, CreatedAt: e.now().UTC()}
	if err := e.store.AppendAudit(saveCtx, entry); err != nil {
		e.logger.ErrorContext(ctx, "Failed to append audit entry", "kind", kind, "chat_id", chatID, "error", err)
	}
}

func statsFor(daily []database.DailyCount, today string) MessageStats {
	stats := MessageStats{Daily: daily}
	for _, d := range daily {
		stats.Total30Days += d.Count
		if d.Date == today {
			stats.Today = d.Count
		}
	}
	if stats.Daily == nil {
		stats.Daily = []database.DailyCount{}
	}
	return stats
}

func newConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "conv-" + id.String()
}

// phoneNumber strips a transport suffix such as "@c.us" from a chat id.
func phoneNumber(chatID string) string {
	if i := strings.IndexByte(chatID, '@'); i >= 0 {
		return chatID[:i]
	}
	return chatID
}
