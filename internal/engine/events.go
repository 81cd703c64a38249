package engine

import (
	"sync"
	"time"

	"github.com/mrdev/replybot/internal/database"
)

// EventType names what an Event carries.
type EventType string

const (
	EventConversationUpdate EventType = "conversationUpdate"
	EventMessageStats       EventType = "messageStats"
	EventBotStatus          EventType = "botStatus"
)

// MessageStats summarizes the daily counters.
type MessageStats struct {
	Today       int                   `json:"today"`
	Total30Days int                   `json:"total30Days"`
	Daily       []database.DailyCount `json:"daily"`
}

// Status is the runtime gate as observers see it.
type Status struct {
	Active    bool      `json:"isActive"`
	Paused    bool      `json:"isPaused"`
	Uptime    int64     `json:"uptime"`
	StartTime time.Time `json:"startTime"`
}

// Event is published to observers. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type         EventType
	Conversation *database.ConversationRecord
	Stats        *MessageStats
	Status       *Status
}

// Payload returns the populated payload field.
func (e Event) Payload() any {
	switch e.Type {
	case EventConversationUpdate:
		return e.Conversation
	case EventMessageStats:
		return e.Stats
	case EventBotStatus:
		return e.Status
	default:
		return nil
	}
}

// Observer receives events synchronously on the publishing goroutine and must
// not block.
type Observer func(Event)

type broadcaster struct {
	mu        sync.RWMutex
	next      uint64
	observers map[uint64]Observer
}

func newBroadcaster() *broadcaster {
	return &broadcaster{observers: make(map[uint64]Observer)}
}

func (b *broadcaster) subscribe(obs Observer) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.observers[id] = obs
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for _, obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs(ev)
	}
}
