package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/database"
	"github.com/mrdev/replybot/internal/engine"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	full := engine.Deps{
		Config:    testConfig(),
		Catalog:   catalog.NewStaticStore(nil, nil, nil, nil),
		Sessions:  nil,
		Store:     &fakeStore{},
		Transport: &fakeTransport{},
	}
	_, err := engine.New(full)
	assert.Error(t, err)

	full.Config = nil
	_, err = engine.New(full)
	assert.Error(t, err)
}

func TestHandleMessage_IgnoresNonChatAndSelf(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	out := h.engine.HandleMessage(ctx, engine.InboundMessage{ChatID: testChat, Body: "السعر", Kind: engine.KindOther, Timestamp: h.clock().Unix()})
	assert.Equal(t, engine.OutcomeIgnored, out)

	out = h.engine.HandleMessage(ctx, engine.InboundMessage{ChatID: testChat, Body: "السعر", Kind: engine.KindChat, FromMe: true, Timestamp: h.clock().Unix()})
	assert.Equal(t, engine.OutcomeIgnored, out)

	assert.Empty(t, h.transport.Replies())
	assert.Zero(t, h.engine.Stats().Today, "ignored messages are not counted")
}

func TestHandleMessage_PausedDropsButCounts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.True(t, h.engine.TogglePause())

	assert.Equal(t, engine.OutcomeGated, h.send(testChat, "السعر كام"))
	assert.Empty(t, h.transport.Replies())
	assert.Empty(t, h.engine.Conversations())
	assert.Equal(t, 1, h.engine.Stats().Today)

	require.False(t, h.engine.TogglePause())
	assert.Equal(t, engine.OutcomeMatched, h.send(testChat, "السعر كام"))
	assert.Len(t, h.engine.Conversations(), 1)
}

func TestHandleMessage_InactiveDrops(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.SetActive(false)

	assert.Equal(t, engine.OutcomeGated, h.send(testChat, "السعر كام"))
	assert.Empty(t, h.transport.Replies())
	assert.Empty(t, h.engine.Conversations())
}

func TestHandleMessage_StaleDropped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out := h.engine.HandleMessage(context.Background(), engine.InboundMessage{
		ChatID:    testChat,
		Body:      "السعر كام",
		Timestamp: h.clock().Add(-10 * time.Second).Unix(),
		Kind:      engine.KindChat,
	})

	assert.Equal(t, engine.OutcomeStale, out)
	assert.Empty(t, h.transport.Replies())
	assert.Empty(t, h.engine.Conversations())
}

func TestSetActive_RestartsSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := h.engine.Gate().StartTime

	h.advance(time.Minute)
	h.engine.SetActive(true) // already active, start time unchanged
	assert.Equal(t, first, h.engine.Gate().StartTime)

	h.engine.SetActive(false)
	h.advance(time.Minute)
	h.engine.SetActive(true)
	assert.Equal(t, first.Add(2*time.Minute), h.engine.Gate().StartTime)

	h.advance(90 * time.Second)
	st := h.engine.Status()
	assert.True(t, st.Active)
	assert.False(t, st.Paused)
	assert.EqualValues(t, 90, st.Uptime)
}

func TestStatus_NoUptimeWhileInactive(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.advance(time.Minute)
	require.Positive(t, h.engine.Status().Uptime)

	h.engine.SetActive(false)
	h.advance(time.Hour)
	st := h.engine.Status()
	assert.False(t, st.Active)
	assert.Zero(t, st.Uptime)
	assert.False(t, st.StartTime.IsZero())
}

func TestHandleMessage_Abuse(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	body := "انت غبي"

	assert.Equal(t, engine.OutcomeAbuse, h.send(testChat, body))

	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, config.DefaultMessages.AbuseReply, replies[0].Text)

	abuse := h.store.Audit(database.AuditAbuse)
	require.Len(t, abuse, 1)
	assert.Equal(t, body, abuse[0].Body)
	assert.Equal(t, testChat, abuse[0].ChatID)

	alerts := h.transport.Direct()
	require.Len(t, alerts, 1)
	assert.Equal(t, supportChat, alerts[0].To)
	assert.Contains(t, alerts[0].Text, testChat)
	assert.Contains(t, alerts[0].Text, body)

	convs := h.engine.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, config.DefaultMessages.AbuseReply, convs[0].BotReply)

	assert.Equal(t, 0, h.session(testChat).NegativeCount)
	assert.Empty(t, h.session(testChat).LastIntent, "abuse bypasses session state")
}

func TestHandleMessage_AbuseWinsOverPraise(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.Equal(t, engine.OutcomeAbuse, h.send(testChat, "شكرا يا غبي"))
	assert.Empty(t, h.store.Audit(database.AuditPraise))
}

func TestHandleMessage_SupportAlertFailureIsLoggedOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transport.directErr = errSend

	assert.Equal(t, engine.OutcomeAbuse, h.send(testChat, "idiot"))
	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, config.DefaultMessages.AbuseReply, replies[0].Text)
}

func TestHandleMessage_Praise(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.Equal(t, engine.OutcomePraise, h.send(testChat, "شكرا"))

	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Contains(t, config.DefaultThanksReplies, replies[0].Text)

	praise := h.store.Audit(database.AuditPraise)
	require.Len(t, praise, 1)
	assert.Equal(t, "شكرا", praise[0].Body)
	assert.Len(t, h.engine.Conversations(), 1)
}

func TestHandleMessage_Unmatched(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.Equal(t, engine.OutcomeFallback, h.send(testChat, "مرحبا يا جماعة"))

	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Contains(t, config.DefaultClarifications, replies[0].Text)

	unmatched := h.store.Audit(database.AuditUnmatched)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "مرحبا يا جماعة", unmatched[0].Body)

	snap, err := h.engine.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap, "fallback leaves session state alone")
}

// Escalation under the default remorse mode, where every matched turn takes
// the remorseful branch.
func TestHandleMessage_EscalationAlwaysMode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	apology := cheapAnswer + config.DefaultMessages.ApologySuffix

	assert.Equal(t, engine.OutcomeMatched, h.send(testChat, "السعر كام"))
	assert.Equal(t, 1, h.session(testChat).NegativeCount)

	assert.Equal(t, engine.OutcomeMatched, h.send(testChat, "السعر كام"))
	assert.Equal(t, 2, h.session(testChat).NegativeCount)

	assert.Equal(t, engine.OutcomeEscalated, h.send(testChat, "السعر كام"))
	assert.Equal(t, 0, h.session(testChat).NegativeCount)

	replies := h.transport.Replies()
	require.Len(t, replies, 3)
	assert.Equal(t, apology, replies[0].Text)
	assert.Equal(t, apology, replies[1].Text)
	assert.Equal(t, config.DefaultMessages.Escalation, replies[2].Text)

	st := h.session(testChat)
	assert.Equal(t, "price", st.LastIntent)
	assert.Equal(t, h.clock(), st.LastIntentAt)
}

func TestHandleMessage_EscalationIsPerChat(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.send("a", "السعر")
	h.send("b", "السعر")
	h.send("a", "السعر")

	assert.Equal(t, 2, h.session("a").NegativeCount)
	assert.Equal(t, 1, h.session("b").NegativeCount)
}

// Under negative_phrases the remorseful branch needs a negative phrase in the
// message; plain questions get a random answer and reset the counter.
func TestHandleMessage_NegativePhrasesMode(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withConfig(func(c *config.Config) {
		c.Engine.RemorseMode = config.RemorseNegativePhrases
	}))

	assert.Equal(t, engine.OutcomeMatched, h.send(testChat, "انا مدايق من السعر"))
	assert.Equal(t, 1, h.session(testChat).NegativeCount)

	assert.Equal(t, engine.OutcomeMatched, h.send(testChat, "السعر كام"))
	assert.Equal(t, 0, h.session(testChat).NegativeCount)

	replies := h.transport.Replies()
	require.Len(t, replies, 2)
	assert.Equal(t, cheapAnswer+config.DefaultMessages.ApologySuffix, replies[0].Text)
	assert.Contains(t, []string{longAnswer, cheapAnswer}, replies[1].Text)

	for range 3 {
		h.send(testChat, "انا مدايق من السعر")
	}
	assert.Equal(t, config.DefaultMessages.Escalation, h.transport.Replies()[4].Text)
	assert.Equal(t, 0, h.session(testChat).NegativeCount)
}

func TestHandleMessage_TypingDelay(t *testing.T) {
	t.Parallel()

	long := strings.TrimSpace(strings.Repeat("word ", 20))
	entries := []catalog.Entry{
		{Intent: "short", Keywords: []string{"alpha"}, Answers: []string{"one two three"}},
		{Intent: "long", Keywords: []string{"omega"}, Answers: []string{long}},
	}
	h := newHarness(t,
		withCatalog(catalog.NewStaticStore(entries, nil, nil, []string{"thanks"})),
		withConfig(func(c *config.Config) { c.Engine.RemorseMode = config.RemorseNegativePhrases }),
	)

	h.send(testChat, "alpha")
	h.send(testChat, "omega")

	assert.Equal(t, []time.Duration{900 * time.Millisecond, 3 * time.Second}, h.Sleeps())
	assert.Len(t, h.transport.typing, 2)
}

func TestHandleMessage_EmptyCatalog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withCatalog(catalog.NewStaticStore(nil, nil, nil, nil)))

	assert.Equal(t, engine.OutcomeUnavailable, h.send(testChat, "السعر كام"))
	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, config.DefaultMessages.CatalogUnavailable, replies[0].Text)
	assert.Len(t, h.engine.Conversations(), 1)
}

func TestHandleMessage_SendFailureFallsBackToGenericReply(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transport.failReply = func(text string) bool { return text != config.DefaultMessages.TechnicalError }

	assert.Equal(t, engine.OutcomeFailed, h.send(testChat, "السعر كام"))

	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, config.DefaultMessages.TechnicalError, replies[0].Text)

	convs := h.engine.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, config.DefaultMessages.TechnicalError, convs[0].BotReply)
}

func TestHandleMessage_GenericReplyFailureIsLoggedOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transport.failReply = func(string) bool { return true }

	assert.Equal(t, engine.OutcomeFailed, h.send(testChat, "السعر كام"))
	assert.Empty(t, h.transport.Replies())
	assert.Empty(t, h.engine.Conversations())
}

func TestHandleMessage_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withCatalog(panicCatalog{}))

	assert.Equal(t, engine.OutcomeFailed, h.send(testChat, "السعر"))
	replies := h.transport.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, config.DefaultMessages.TechnicalError, replies[0].Text)
}

func TestHandleMessage_PersistenceFailureStillBroadcasts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.err = errors.New("disk full")

	var mu sync.Mutex
	var updates int
	h.engine.Subscribe(func(ev engine.Event) {
		if ev.Type == engine.EventConversationUpdate {
			mu.Lock()
			updates++
			mu.Unlock()
		}
	})

	assert.Equal(t, engine.OutcomeMatched, h.send(testChat, "السعر كام"))
	assert.Len(t, h.engine.Conversations(), 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, updates)
}

func TestSetPaused_PublishesStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	var statuses []engine.Status
	h.engine.Subscribe(func(ev engine.Event) {
		if ev.Type == engine.EventBotStatus {
			statuses = append(statuses, *ev.Status)
		}
	})

	h.engine.SetPaused(true)
	h.engine.SetPaused(true)
	h.engine.SetPaused(false)

	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Paused)
	assert.True(t, statuses[1].Paused)
	assert.False(t, statuses[2].Paused)
	assert.False(t, h.engine.Gate().Paused)
}
