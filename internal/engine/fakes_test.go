package engine_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/database"
	"github.com/mrdev/replybot/internal/engine"
	"github.com/mrdev/replybot/internal/session"
)

var errSend = errors.New("send failed")

type sentMessage struct {
	To   string
	Text string
}

type fakeTransport struct {
	mu      sync.Mutex
	replies []sentMessage
	direct  []sentMessage
	typing  []string

	// failReply, when set, decides whether a SendReply call fails.
	failReply func(text string) bool
	directErr error
}

func (f *fakeTransport) SendReply(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReply != nil && f.failReply(text) {
		return errSend
	}
	f.replies = append(f.replies, sentMessage{To: chatID, Text: text})
	return nil
}

func (f *fakeTransport) SetTyping(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, chatID)
	return nil
}

func (f *fakeTransport) SendTo(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.directErr != nil {
		return f.directErr
	}
	f.direct = append(f.direct, sentMessage{To: id, Text: text})
	return nil
}

func (f *fakeTransport) Replies() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.replies)
}

func (f *fakeTransport) Direct() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.direct)
}

type fakeStore struct {
	mu            sync.Mutex
	conversations []database.ConversationRecord
	daily         []database.DailyCount
	audit         []database.AuditEntry
	err           error

	// beforeDaily, when set, runs at the start of every ReplaceDailyCounts.
	beforeDaily func()
}

func (s *fakeStore) SaveConversation(_ context.Context, rec database.ConversationRecord, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.conversations = slices.Insert(s.conversations, 0, rec)
	if len(s.conversations) > keep {
		s.conversations = s.conversations[:keep]
	}
	return nil
}

func (s *fakeStore) LoadConversations(_ context.Context, limit int) ([]database.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations[:min(limit, len(s.conversations))]), nil
}

func (s *fakeStore) ReplaceDailyCounts(_ context.Context, counts []database.DailyCount) error {
	if s.beforeDaily != nil {
		s.beforeDaily()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.daily = slices.Clone(counts)
	return nil
}

func (s *fakeStore) LoadDailyCounts(_ context.Context) ([]database.DailyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.daily), nil
}

func (s *fakeStore) AppendAudit(_ context.Context, entry database.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *fakeStore) ListAudit(_ context.Context, kind database.AuditKind, limit int) ([]database.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.AuditEntry
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if s.audit[i].Kind == kind {
			out = append(out, s.audit[i])
		}
	}
	return out, nil
}

func (s *fakeStore) Audit(kind database.AuditKind) []database.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.AuditEntry
	for _, a := range s.audit {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

type panicCatalog struct{}

func (panicCatalog) Snapshot() catalog.Snapshot { panic("catalog exploded") }
func (panicCatalog) Reload() (catalog.Snapshot, error) { return catalog.Snapshot{}, nil }

const (
	testChat    = "201000000000@c.us"
	supportChat = "support"
	cheapAnswer = "500 جنيه"
	longAnswer  = "الكورس بـ 500 جنيه شامل كل المحاضرات"
)

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		{Intent: "price", Keywords: []string{"السعر", "بكام"}, Answers: []string{longAnswer, cheapAnswer}},
		{Intent: "location", Keywords: []string{"المكان", "العنوان"}, Answers: []string{"في وسط البلد"}},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{SupportChatID: supportChat},
		Engine: config.EngineConfig{
			ConversationLimit: config.DefaultConversationLimit,
			DailyBucketLimit:  config.DefaultDailyBucketLimit,
			MatchThreshold:    config.DefaultMatchThreshold,
			TypingPerWord:     config.DefaultTypingPerWord,
			TypingMax:         config.DefaultTypingMax,
			EscalationAfter:   config.DefaultEscalationAfter,
			RemorseMode:       config.RemorseAlways,
			NegativePhrases:   config.DefaultNegativePhrases,
		},
		Messages: config.DefaultMessages,
	}
}

type harness struct {
	t         *testing.T
	engine    *engine.Engine
	transport *fakeTransport
	store     *fakeStore
	sessions  *session.MemoryStore

	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

type harnessOption func(*harnessSetup)

type harnessSetup struct {
	cfg     *config.Config
	catalog engine.Catalog
}

func withConfig(mutate func(*config.Config)) harnessOption {
	return func(s *harnessSetup) { mutate(s.cfg) }
}

func withCatalog(c engine.Catalog) harnessOption {
	return func(s *harnessSetup) { s.catalog = c }
}

// newHarness builds an active engine whose clock starts at a whole second.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	setup := &harnessSetup{
		cfg:     testConfig(),
		catalog: catalog.NewStaticStore(testEntries(), []string{"غبي", "idiot"}, config.DefaultPraiseKeywords, config.DefaultThanksReplies),
	}
	for _, opt := range opts {
		opt(setup)
	}

	h := &harness{
		t:         t,
		transport: &fakeTransport{},
		store:     &fakeStore{},
		sessions:  session.NewMemoryStore(),
		now:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	eng, err := engine.New(engine.Deps{
		Config:    setup.cfg,
		Catalog:   setup.catalog,
		Sessions:  h.sessions,
		Store:     h.store,
		Transport: h.transport,
	},
		engine.WithClock(h.clock),
		engine.WithSleep(h.sleep),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	h.engine = eng
	eng.SetActive(true)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) sleep(_ context.Context, d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sleeps = append(h.sleeps, d)
	return nil
}

func (h *harness) Sleeps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.sleeps)
}

// send delivers a chat message from chatID stamped with the current clock.
func (h *harness) send(chatID, body string) engine.Outcome {
	return h.engine.HandleMessage(context.Background(), engine.InboundMessage{
		ChatID:    chatID,
		Body:      body,
		Timestamp: h.clock().Unix(),
		Kind:      engine.KindChat,
	})
}

func (h *harness) session(chatID string) session.State {
	st, err := h.sessions.Get(context.Background(), chatID)
	if err != nil {
		h.t.Fatalf("session get: %v", err)
	}
	return st
}
