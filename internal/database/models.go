package database

import "time"

// ConversationRecord is one answered inbound message. The JSON shape is what
// the dashboard and the export endpoint serve.
type ConversationRecord struct {
	Seq             int64     `db:"seq" json:"-"`
	ID              string    `db:"id" json:"id"`
	PhoneNumber     string    `db:"phone_number" json:"phoneNumber"`
	IncomingMessage string    `db:"incoming_message" json:"incomingMessage"`
	BotReply        string    `db:"bot_reply" json:"botReply"`
	Timestamp       time.Time `db:"timestamp" json:"timestamp"`
}

// DailyCount is the number of counted inbound messages for one UTC date
// (YYYY-MM-DD).
type DailyCount struct {
	Position int    `db:"position" json:"-"`
	Date     string `db:"date" json:"date"`
	Count    int    `db:"count" json:"count"`
}

// AuditKind names an append-only audit log.
type AuditKind string

const (
	AuditUnmatched AuditKind = "unmatched"
	AuditPraise    AuditKind = "praise"
	AuditAbuse     AuditKind = "abuse"
)

// AuditEntry is one line of an audit log.
type AuditEntry struct {
	ID        int64     `db:"id" json:"id"`
	Kind      AuditKind `db:"kind" json:"kind"`
	ChatID    string    `db:"chat_id" json:"chatId"`
	Body      string    `db:"body" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}
