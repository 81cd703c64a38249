// Package engine turns inbound chat messages into replies: it gates on the
// runtime flags, classifies and matches the text against the catalog, keeps
// per-chat session memory, and records every answered turn for observers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/database"
	"github.com/mrdev/replybot/internal/session"
	"github.com/mrdev/replybot/internal/text"
)

// MessageKind is the transport's message type. Only KindChat is answered.
type MessageKind string

const (
	KindChat  MessageKind = "chat"
	KindOther MessageKind = "other"
)

// InboundMessage is one message as delivered by the transport.
type InboundMessage struct {
	ChatID    string
	MessageID int
	Body      string
	Timestamp int64 // unix seconds
	Kind      MessageKind
	FromMe    bool
}

// Outcome reports what HandleMessage did with a message.
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeGated       Outcome = "gated"
	OutcomeStale       Outcome = "stale"
	OutcomeAbuse       Outcome = "abuse"
	OutcomePraise      Outcome = "praise"
	OutcomeUnavailable Outcome = "catalog_unavailable"
	OutcomeMatched     Outcome = "matched"
	OutcomeEscalated   Outcome = "escalated"
	OutcomeFallback    Outcome = "fallback"
	OutcomeFailed      Outcome = "failed"
)

// Transport sends messages on behalf of the engine.
type Transport interface {
	SendReply(ctx context.Context, chatID string, text string) error
	SetTyping(ctx context.Context, chatID string) error
	SendTo(ctx context.Context, id string, text string) error
}

// Catalog supplies the current catalog snapshot.
type Catalog interface {
	Snapshot() catalog.Snapshot
	Reload() (catalog.Snapshot, error)
}

// Store persists conversations, counters, and audit entries.
type Store interface {
	SaveConversation(ctx context.Context, rec database.ConversationRecord, keep int) error
	LoadConversations(ctx context.Context, limit int) ([]database.ConversationRecord, error)
	ReplaceDailyCounts(ctx context.Context, counts []database.DailyCount) error
	LoadDailyCounts(ctx context.Context) ([]database.DailyCount, error)
	AppendAudit(ctx context.Context, entry database.AuditEntry) error
	ListAudit(ctx context.Context, kind database.AuditKind, limit int) ([]database.AuditEntry, error)
}

// RuntimeGate holds the flags that decide whether messages are answered.
type RuntimeGate struct {
	Active    bool
	Paused    bool
	StartTime time.Time
}

// Deps holds the engine's collaborators.
type Deps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Catalog   Catalog
	Sessions  session.Store
	Store     Store
	Transport Transport
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleep replaces the typing delay wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithRand sets the random source used to pick answers.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// Engine is the reply pipeline. Messages are handled one at a time, typing
// delay included.
type Engine struct {
	logger    *slog.Logger
	cfg       config.EngineConfig
	msgs      config.MessagesConfig
	supportID string

	catalog   Catalog
	sessions  session.Store
	store     Store
	transport Transport
	selector  *selector
	events    *broadcaster

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand

	// procMu serializes HandleMessage and ResetStats.
	procMu sync.Mutex

	// mu guards the fields below.
	mu            sync.RWMutex
	gate          RuntimeGate
	conversations []database.ConversationRecord
	daily         []database.DailyCount
}

// New creates an Engine. The gate starts inactive; call SetActive once the
// transport is ready.
func New(deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("engine requires a config")
	case deps.Catalog == nil:
		return nil, errors.New("engine requires a catalog")
	case deps.Sessions == nil:
		return nil, errors.New("engine requires a session store")
	case deps.Store == nil:
		return nil, errors.New("engine requires a persistence store")
	case deps.Transport == nil:
		return nil, errors.New("engine requires a transport")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		logger:    logger.With("component", "engine"),
		cfg:       deps.Config.Engine,
		msgs:      deps.Config.Messages,
		supportID: deps.Config.Telegram.SupportChatID,
		catalog:   deps.Catalog,
		sessions:  deps.Sessions,
		store:     deps.Store,
		transport: deps.Transport,
		events:    newBroadcaster(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.selector = newSelector(e.cfg, e.msgs, e.rng)

	return e, nil
}

// Restore loads the persisted conversation log and daily counters.
func (e *Engine) Restore(ctx context.Context) error {
	convs, err := e.store.LoadConversations(ctx, e.cfg.ConversationLimit)
	if err != nil {
		return fmt.Errorf("failed to restore conversations: %w", err)
	}
	daily, err := e.store.LoadDailyCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore daily counts: %w", err)
	}
	if over := len(daily) - e.cfg.DailyBucketLimit; over > 0 {
		daily = daily[over:]
	}

	e.mu.Lock()
	e.conversations = convs
	e.daily = daily
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Restored engine state", "conversations", len(convs), "daily_buckets", len(daily))
	return nil
}

// HandleMessage runs one inbound message through the pipeline. Failures are
// handled internally; the Outcome is informational.
func (e *Engine) HandleMessage(ctx context.Context, msg InboundMessage) Outcome {
	if msg.Kind != KindChat || msg.FromMe {
		return OutcomeIgnored
	}

	e.procMu.Lock()
	defer e.procMu.Unlock()

	e.recordDailyCount(ctx)

	gate := e.Gate()
	if !gate.Active || gate.Paused {
		e.logger.DebugContext(ctx, "Message dropped by gate", "chat_id", msg.ChatID, "active", gate.Active, "paused", gate.Paused)
		return OutcomeGated
	}
	if time.Unix(msg.Timestamp, 0).Before(gate.StartTime) {
		e.logger.DebugContext(ctx, "Stale message dropped", "chat_id", msg.ChatID, "timestamp", msg.Timestamp)
		return OutcomeStale
	}

	return e.process(ctx, msg)
}

func (e *Engine) process(ctx context.Context, msg InboundMessage) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Panic while processing message", "chat_id", msg.ChatID, "panic", r)
			outcome = e.fail(ctx, msg)
		}
	}()

	outcome, err := e.respond(ctx, msg)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to process message", "chat_id", msg.ChatID, "error", err)
		return e.fail(ctx, msg)
	}
	return outcome
}

func (e *Engine) respond(ctx context.Context, msg InboundMessage) (Outcome, error) {
	normalized := text.Normalize(msg.Body)
	snap := e.catalog.Snapshot()
	sentiment := Classify(normalized, snap)

	e.logger.DebugContext(ctx, "Classified message", "chat_id", msg.ChatID, "normalized", normalized, "sentiment", sentiment)

	switch sentiment {
	case SentimentAbusive:
		return OutcomeAbuse, e.handleAbuse(ctx, msg)
	case SentimentPositive:
		return OutcomePraise, e.handlePraise(ctx, msg, snap)
	}

	if len(snap.Entries) == 0 {
		e.logger.WarnContext(ctx, "Catalog is empty, reloading")
		reloaded, err := e.catalog.Reload()
		if err != nil {
			e.logger.ErrorContext(ctx, "Catalog reload failed", "error", err)
		}
		snap = reloaded
		if len(snap.Entries) == 0 {
			if err := e.transport.SendReply(ctx, msg.ChatID, e.msgs.CatalogUnavailable); err != nil {
				return OutcomeUnavailable, fmt.Errorf("failed to send catalog unavailable reply: %w", err)
			}
			e.recordConversation(ctx, msg.ChatID, msg.Body, e.msgs.CatalogUnavailable)
			return OutcomeUnavailable, nil
		}
	}

	entry, ok := Match(normalized, snap.Entries, e.cfg.MatchThreshold)
	if !ok {
		return OutcomeFallback, e.handleUnmatched(ctx, msg)
	}
	return e.handleMatch(ctx, msg, entry, normalized)
}

func (e *Engine) handleAbuse(ctx context.Context, msg InboundMessage) error {
	if err := e.transport.SendReply(ctx, msg.ChatID, e.msgs.AbuseReply); err != nil {
		return fmt.Errorf("failed to send abuse reply: %w", err)
	}
	e.recordConversation(ctx, msg.ChatID, msg.Body, e.msgs.AbuseReply)
	e.appendAudit(ctx, database.AuditAbuse, msg.ChatID, msg.Body)

	alert := fmt.Sprintf(e.msgs.SupportAlert, msg.ChatID, msg.Body)
	if err := e.transport.SendTo(ctx, e.supportID, alert); err != nil {
		e.logger.ErrorContext(ctx, "Failed to send support alert", "chat_id", msg.ChatID, "support_id", e.supportID, "error", err)
	}

	e.logger.WarnContext(ctx, "Abusive message recorded", "chat_id", msg.ChatID)
	return nil
}

func (e *Engine) handlePraise(ctx context.Context, msg InboundMessage, snap catalog.Snapshot) error {
	if len(snap.ThanksReplies) == 0 {
		return errors.New("no thanks replies configured")
	}

	reply := e.selector.pick(snap.ThanksReplies)
	if err := e.transport.SendReply(ctx, msg.ChatID, reply); err != nil {
		return fmt.Errorf("failed to send thanks reply: %w", err)
	}
	e.recordConversation(ctx, msg.ChatID, msg.Body, reply)
	e.appendAudit(ctx, database.AuditPraise, msg.ChatID, msg.Body)

	e.logger.InfoContext(ctx, "Praise recorded", "chat_id", msg.ChatID)
	return nil
}

func (e *Engine) handleUnmatched(ctx context.Context, msg InboundMessage) error {
	reply := e.selector.clarification()
	if err := e.deliver(ctx, msg.ChatID, reply); err != nil {
		return err
	}
	e.recordConversation(ctx, msg.ChatID, msg.Body, reply)
	e.appendAudit(ctx, database.AuditUnmatched, msg.ChatID, msg.Body)

	e.logger.InfoContext(ctx, "No catalog match", "chat_id", msg.ChatID)
	return nil
}

func (e *Engine) handleMatch(ctx context.Context, msg InboundMessage, entry catalog.Entry, normalized string) (Outcome, error) {
	state, err := e.sessions.Get(ctx, msg.ChatID)
	if err != nil {
		return OutcomeMatched, fmt.Errorf("failed to load session: %w", err)
	}

	sel := e.selector.choose(entry, &state, normalized, e.now())
	if err := e.sessions.Put(ctx, msg.ChatID, state); err != nil {
		e.logger.WarnContext(ctx, "Failed to store session", "chat_id", msg.ChatID, "error", err)
	}

	outcome := OutcomeMatched
	if sel.Escalated {
		outcome = OutcomeEscalated
	}

	if err := e.deliver(ctx, msg.ChatID, sel.Reply); err != nil {
		return outcome, err
	}
	e.recordConversation(ctx, msg.ChatID, msg.Body, sel.Reply)

	e.logger.InfoContext(ctx, "Matched intent",
		"chat_id", msg.ChatID, "intent", sel.Intent, "remorseful", sel.Remorseful,
		"escalated", sel.Escalated, "negative_count", state.NegativeCount)
	return outcome, nil
}

// deliver shows the typing indicator, waits the simulated typing time, then
// sends reply.
func (e *Engine) deliver(ctx context.Context, chatID, reply string) error {
	if err := e.transport.SetTyping(ctx, chatID); err != nil {
		e.logger.DebugContext(ctx, "Failed to set typing indicator", "chat_id", chatID, "error", err)
	}
	if err := e.sleep(ctx, e.selector.typingDelay(reply)); err != nil {
		return fmt.Errorf("typing delay interrupted: %w", err)
	}
	if err := e.transport.SendReply(ctx, chatID, reply); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// fail sends the generic technical error reply once. If that send fails too
// the turn is only logged.
func (e *Engine) fail(ctx context.Context, msg InboundMessage) Outcome {
	if err := e.transport.SendReply(ctx, msg.ChatID, e.msgs.TechnicalError); err != nil {
		e.logger.ErrorContext(ctx, "Failed to send technical error reply", "chat_id", msg.ChatID, "error", err)
		return OutcomeFailed
	}
	e.recordConversation(ctx, msg.ChatID, msg.Body, e.msgs.TechnicalError)
	return OutcomeFailed
}

// Subscribe registers obs for engine events and returns a function that
// removes it.
func (e *Engine) Subscribe(obs Observer) (unsubscribe func()) {
	return e.events.subscribe(obs)
}

// Gate returns a copy of the runtime gate.
func (e *Engine) Gate() RuntimeGate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gate
}

// SetActive marks the transport ready or gone. Becoming active starts a new
// session: messages older than now are dropped from then on.
func (e *Engine) SetActive(active bool) {
	e.mu.Lock()
	if active && !e.gate.Active {
		e.gate.StartTime = e.now()
	}
	e.gate.Active = active
	e.mu.Unlock()

	e.logger.Info("Engine active flag changed", "active", active)
	e.publishStatus()
}

// TogglePause flips the paused flag and returns the new value.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	e.gate.Paused = !e.gate.Paused
	paused := e.gate.Paused
	e.mu.Unlock()

	e.logger.Info("Engine pause toggled", "paused", paused)
	e.publishStatus()
	return paused
}

// SetPaused sets the paused flag.
func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	e.gate.Paused = paused
	e.mu.Unlock()

	e.logger.Info("Engine paused flag set", "paused", paused)
	e.publishStatus()
}

// Status reports the gate and uptime in whole seconds. Uptime is zero while
// the engine is inactive.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{Active: e.gate.Active, Paused: e.gate.Paused, StartTime: e.gate.StartTime}
	if e.gate.Active && !e.gate.StartTime.IsZero() {
		st.Uptime = int64(e.now().Sub(e.gate.StartTime) / time.Second)
	}
	return st
}

// Stats returns today's count, the total across all buckets, and the buckets.
func (e *Engine) Stats() MessageStats {
	today := e.now().UTC().Format(time.DateOnly)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return statsFor(slices.Clone(e.daily), today)
}

// ResetStats clears the daily counters. It waits for any in-flight message
// so a stale count cannot be persisted after the reset.
func (e *Engine) ResetStats(ctx context.Context) error {
	e.procMu.Lock()
	defer e.procMu.Unlock()

	e.mu.Lock()
	e.daily = nil
	e.mu.Unlock()

	err := e.store.ReplaceDailyCounts(ctx, nil)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist stats reset", "error", err)
		err = fmt.Errorf("failed to reset daily counts: %w", err)
	}

	stats := e.Stats()
	e.events.publish(Event{Type: EventMessageStats, Stats: &stats})
	e.logger.InfoContext(ctx, "Daily counters reset")
	return err
}

// ReloadCatalog reloads the catalog files and returns the new snapshot.
func (e *Engine) ReloadCatalog() (catalog.Snapshot, error) {
	snap, err := e.catalog.Reload()
	e.logger.Info("Catalog reloaded", "intents", len(snap.Entries), "bad_words", len(snap.BadWords), "error", err)
	return snap, err
}

// Conversations returns a copy of the conversation log, newest first.
func (e *Engine) Conversations() []database.ConversationRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.conversations)
}

// Sessions returns every chat's session state.
func (e *Engine) Sessions(ctx context.Context) (map[string]session.State, error) {
	return e.sessions.Snapshot(ctx)
}

// FlushSessions clears all session state.
func (e *Engine) FlushSessions(ctx context.Context) (int, error) {
	return e.sessions.Flush(ctx)
}

// AuditLog returns up to limit entries of kind, newest first.
func (e *Engine) AuditLog(ctx context.Context, kind database.AuditKind, limit int) ([]database.AuditEntry, error) {
	return e.store.ListAudit(ctx, kind, limit)
}

func (e *Engine) publishStatus() {
	st := e.Status()
	e.events.publish(Event{Type: EventBotStatus, Status: &st})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
