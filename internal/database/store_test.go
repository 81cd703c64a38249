package database_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdev/replybot/internal/database"
)

func newTestStore(t *testing.T) (database.Store, *sqlx.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil), db
}

func record(i int, at time.Time) database.ConversationRecord {
	return database.ConversationRecord{
		ID:              fmt.Sprintf("conv-%d", i),
		PhoneNumber:     "201000000000",
		IncomingMessage: fmt.Sprintf("msg %d", i),
		BotReply:        "reply",
		Timestamp:       at.Add(time.Duration(i) * time.Second),
	}
}

func TestSaveConversation_TrimsToNewest(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, store.SaveConversation(ctx, record(i, base), 3))
	}

	got, err := store.LoadConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "conv-4", got[0].ID)
	assert.Equal(t, "conv-3", got[1].ID)
	assert.Equal(t, "conv-2", got[2].ID)
	assert.True(t, got[0].Timestamp.Equal(base.Add(4*time.Second)))
	assert.Equal(t, "msg 4", got[0].IncomingMessage)
}

func TestSaveConversation_RejectsInvalid(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name string
		rec  database.ConversationRecord
		keep int
	}{
		{"missing id", database.ConversationRecord{Timestamp: now}, 10},
		{"zero timestamp", database.ConversationRecord{ID: "conv-x"}, 10},
		{"non-positive keep", database.ConversationRecord{ID: "conv-y", Timestamp: now}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.SaveConversation(ctx, tt.rec, tt.keep))
		})
	}
}

func TestSaveConversation_DuplicateIDFails(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	rec := record(1, time.Now())

	require.NoError(t, store.SaveConversation(ctx, rec, 10))
	assert.Error(t, store.SaveConversation(ctx, rec, 10))

	got, err := store.LoadConversations(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDailyCounts_ReplaceAndLoad(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	empty, err := store.LoadDailyCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	first := []database.DailyCount{{Date: "2025-03-01", Count: 4}, {Date: "2025-03-02", Count: 1}}
	require.NoError(t, store.ReplaceDailyCounts(ctx, first))

	second := []database.DailyCount{{Date: "2025-03-02", Count: 2}, {Date: "2025-03-03", Count: 7}}
	require.NoError(t, store.ReplaceDailyCounts(ctx, second))

	got, err := store.LoadDailyCounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-03-02", got[0].Date)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "2025-03-03", got[1].Date)
	assert.Equal(t, 7, got[1].Count)

	require.NoError(t, store.ReplaceDailyCounts(ctx, nil))
	got, err = store.LoadDailyCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAudit_AppendAndListByKind(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.AppendAudit(ctx, database.AuditEntry{Kind: database.AuditPraise, ChatID: "a", Body: "thanks", CreatedAt: now}))
	require.NoError(t, store.AppendAudit(ctx, database.AuditEntry{Kind: database.AuditUnmatched, ChatID: "b", Body: "???", CreatedAt: now}))
	require.NoError(t, store.AppendAudit(ctx, database.AuditEntry{Kind: database.AuditPraise, ChatID: "c", Body: "great", CreatedAt: now}))
	assert.Error(t, store.AppendAudit(ctx, database.AuditEntry{ChatID: "d", Body: "no kind"}))

	praise, err := store.ListAudit(ctx, database.AuditPraise, 0)
	require.NoError(t, err)
	require.Len(t, praise, 2)
	assert.Equal(t, "great", praise[0].Body)
	assert.Equal(t, "thanks", praise[1].Body)

	abuse, err := store.ListAudit(ctx, database.AuditAbuse, 10)
	require.NoError(t, err)
	assert.Empty(t, abuse)
}

func TestMigrations_AreIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "twice.db")

	db, err := database.NewDB(path)
	require.NoError(t, err)
	database.CloseDB(db)

	db, err = database.NewDB(path)
	require.NoError(t, err)
	defer database.CloseDB(db)

	assert.NoError(t, database.NewStore(db, nil).RunSQLMaintenance(context.Background()))
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"storage.db", "storage.db"},
		{"file:storage.db?_pragma=busy_timeout(5000)", "storage.db"},
		{"file:my%20data.db", "my data.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, database.ExtractDBNameFromPath(tt.in))
		})
	}
}
