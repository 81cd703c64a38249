package dashboard

import (
	"strings"
	"time"

	"github.com/mrdev/replybot/internal/database"
)

type conversationStats struct {
	Total       int `json:"total"`
	UniqueUsers int `json:"uniqueUsers"`
	Today       int `json:"today"`
}

type pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type conversationsPage struct {
	Conversations []database.ConversationRecord `json:"conversations"`
	Stats         conversationStats             `json:"stats"`
	Pagination    *pagination                   `json:"pagination,omitempty"`
}

// filterConversations keeps records whose phone number, message, or reply
// contains search, ignoring case. An empty search keeps everything.
func filterConversations(records []database.ConversationRecord, search string) []database.ConversationRecord {
	out := make([]database.ConversationRecord, 0, len(records))
	needle := strings.ToLower(strings.TrimSpace(search))
	for _, rec := range records {
		if needle == "" ||
			strings.Contains(strings.ToLower(rec.PhoneNumber), needle) ||
			strings.Contains(strings.ToLower(rec.IncomingMessage), needle) ||
			strings.Contains(strings.ToLower(rec.BotReply), needle) {
			out = append(out, rec)
		}
	}
	return out
}

func paginate(records []database.ConversationRecord, limit, offset int) ([]database.ConversationRecord, bool) {
	if offset >= len(records) {
		return []database.ConversationRecord{}, false
	}
	end := offset + min(limit, len(records)-offset)
	return records[offset:end], end < len(records)
}

// summarize counts records, distinct phone numbers, and records stamped
// today (UTC date, YYYY-MM-DD).
func summarize(records []database.ConversationRecord, today string) conversationStats {
	users := make(map[string]struct{}, len(records))
	st := conversationStats{Total: len(records)}
	for _, rec := range records {
		users[rec.PhoneNumber] = struct{}{}
		if rec.Timestamp.UTC().Format(time.DateOnly) == today {
			st.Today++
		}
	}
	st.UniqueUsers = len(users)
	return st
}
